package instructors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// RepositoryPort defines data access methods for instructor profiles.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (Instructor, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Instructor, int, error)
	Create(ctx context.Context, in Instructor) (Instructor, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (Instructor, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// Service manages instructor profiles of the actor's tenant.
type Service struct {
	repo  RepositoryPort
	staff members.Finder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, staff members.Finder) *Service {
	return &Service{repo: repo, staff: staff}
}

// List returns one page of profiles.
func (s *Service) List(ctx context.Context, actor rbac.Identity, search string, status Status, page shared.PageRequest) ([]Instructor, shared.Pagination, error) {
	if status != "" && !status.Valid() {
		return nil, shared.Pagination{}, ErrInvalidStatus
	}
	items, total, err := s.repo.List(ctx, actor.TenantID, ListFilter{
		Search: strings.TrimSpace(search),
		Status: status,
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get returns one profile.
func (s *Service) Get(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Instructor, error) {
	return s.repo.Get(ctx, actor.TenantID, id)
}

// Create opens a profile for a member who can teach in the tenant.
func (s *Service) Create(ctx context.Context, actor rbac.Identity, in CreateInput) (Instructor, error) {
	m, err := s.staff.FindByUserAndTenant(ctx, in.UserID, actor.TenantID)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			return Instructor{}, ErrNotTeaching
		}
		return Instructor{}, fmt.Errorf("instructors: membership lookup: %w", err)
	}
	if !m.CanTeach() {
		return Instructor{}, ErrNotTeaching
	}
	return s.repo.Create(ctx, Instructor{
		TenantID:       actor.TenantID,
		UserID:         in.UserID,
		Name:           strings.TrimSpace(in.Name),
		Email:          normalizeEmail(in.Email),
		Phone:          in.Phone,
		Specialization: in.Specialization,
		HiredOn:        in.HiredOn,
		Status:         StatusActive,
		Notes:          in.Notes,
	})
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, actor rbac.Identity, id uuid.UUID, in UpdateInput) (Instructor, error) {
	if in.Empty() {
		return Instructor{}, ErrEmptyUpdate
	}
	if in.Status != nil && !in.Status.Valid() {
		return Instructor{}, ErrInvalidStatus
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	in.Email = normalizeEmail(in.Email)
	return s.repo.Update(ctx, actor.TenantID, id, in)
}

// Delete removes a profile. Class assignments reference the user and stay.
func (s *Service) Delete(ctx context.Context, actor rbac.Identity, id uuid.UUID) error {
	return s.repo.Delete(ctx, actor.TenantID, id)
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	return &v
}
