package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// RepositoryPort defines data access methods for attendance.
type RepositoryPort interface {
	Record(ctx context.Context, sheet Sheet) ([]Record, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Record, int, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// Service records attendance. It stores marks only; rates and reports are
// computed elsewhere.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record stores a roll call. Sessions more than a day ahead of UTC today
// are rejected.
func (s *Service) Record(ctx context.Context, actor rbac.Identity, in RecordInput) ([]Record, error) {
	date, err := parseDate(in.SessionDate)
	if err != nil {
		return nil, err
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	if date.After(today.AddDate(0, 0, 1)) {
		return nil, ErrFutureSession
	}

	seen := make(map[uuid.UUID]struct{}, len(in.Marks))
	for _, m := range in.Marks {
		if !m.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		if _, dup := seen[m.StudentID]; dup {
			return nil, ErrDuplicateMark
		}
		seen[m.StudentID] = struct{}{}
	}

	return s.repo.Record(ctx, Sheet{
		TenantID:    actor.TenantID,
		ClassID:     in.ClassID,
		SessionDate: date,
		RecordedBy:  actor.UserID,
		Marks:       in.Marks,
	})
}

// List returns one page of records for a class or a student.
func (s *Service) List(ctx context.Context, actor rbac.Identity, filter ListFilter, page shared.PageRequest) ([]Record, shared.Pagination, error) {
	if filter.ClassID == nil && filter.StudentID == nil {
		return nil, shared.Pagination{}, ErrFilterRequired
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, shared.Pagination{}, ErrInvalidRange
	}
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()
	items, total, err := s.repo.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Delete removes one record.
func (s *Service) Delete(ctx context.Context, actor rbac.Identity, id uuid.UUID) error {
	return s.repo.Delete(ctx, actor.TenantID, id)
}

func parseDate(raw string) (time.Time, error) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}
