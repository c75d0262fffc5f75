package students

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// RepositoryPort defines data access methods for students.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (Student, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Student, int, error)
	Create(ctx context.Context, s Student) (Student, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (Student, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// Service handles student business logic. Every call is scoped to the
// actor's tenant.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns one page of students.
func (s *Service) List(ctx context.Context, actor rbac.Identity, search string, status Status, page shared.PageRequest) ([]Student, shared.Pagination, error) {
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

// Get returns one student.
func (s *Service) Get(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Student, error) {
	return s.repo.Get(ctx, actor.TenantID, id)
}

// Create registers a student; status defaults to active.
func (s *Service) Create(ctx context.Context, actor rbac.Identity, in CreateInput) (Student, error) {
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return Student{}, ErrInvalidStatus
	}
	return s.repo.Create(ctx, Student{
		TenantID:    actor.TenantID,
		Name:        strings.TrimSpace(in.Name),
		Email:       normalizeEmail(in.Email),
		Phone:       in.Phone,
		ParentName:  in.ParentName,
		ParentPhone: in.ParentPhone,
		Grade:       in.Grade,
		BirthDate:   in.BirthDate,
		Status:      status,
		Notes:       in.Notes,
		CreatedBy:   actor.UserID,
	})
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, actor rbac.Identity, id uuid.UUID, in UpdateInput) (Student, error) {
	if in.Empty() {
		return Student{}, ErrEmptyUpdate
	}
	if in.Status != nil && !in.Status.Valid() {
		return Student{}, ErrInvalidStatus
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	in.Email = normalizeEmail(in.Email)
	return s.repo.Update(ctx, actor.TenantID, id, in)
}

// Delete removes a student.
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
