package classes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// RepositoryPort defines data access methods for classes and enrollments.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id uuid.UUID) (Class, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Class, int, error)
	Create(ctx context.Context, c Class) (Class, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput) (Class, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	ListEnrollments(ctx context.Context, tenantID, classID uuid.UUID) ([]Enrollment, error)
	Enroll(ctx context.Context, e Enrollment) (Enrollment, error)
	Unenroll(ctx context.Context, tenantID, classID, studentID uuid.UUID) error
}

// Service handles class scheduling and enrollment rules.
type Service struct {
	repo  RepositoryPort
	staff members.Finder
}

// NewService builds Service instance. staff resolves the memberships that
// instructor assignments are checked against.
func NewService(repo RepositoryPort, staff members.Finder) *Service {
	return &Service{repo: repo, staff: staff}
}

// List returns one page of classes.
func (s *Service) List(ctx context.Context, actor rbac.Identity, filter ListFilter, page shared.PageRequest) ([]Class, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Pagination{}, ErrInvalidStatus
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Limit = page.PerPage
	filter.Offset = page.Offset()
	items, total, err := s.repo.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get returns one class.
func (s *Service) Get(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Class, error) {
	return s.repo.Get(ctx, actor.TenantID, id)
}

// Create schedules a new active class.
func (s *Service) Create(ctx context.Context, actor rbac.Identity, in CreateInput) (Class, error) {
	if err := checkDates(in.StartsOn, in.EndsOn); err != nil {
		return Class{}, err
	}
	if err := s.checkInstructor(ctx, actor.TenantID, in.InstructorID); err != nil {
		return Class{}, err
	}
	return s.repo.Create(ctx, Class{
		TenantID:     actor.TenantID,
		Name:         strings.TrimSpace(in.Name),
		Subject:      in.Subject,
		InstructorID: in.InstructorID,
		Room:         in.Room,
		Schedule:     in.Schedule,
		Capacity:     in.Capacity,
		Status:       StatusActive,
		StartsOn:     in.StartsOn,
		EndsOn:       in.EndsOn,
	})
}

// Update applies a partial update. When only one of the dates changes it is
// checked against the stored value.
func (s *Service) Update(ctx context.Context, actor rbac.Identity, id uuid.UUID, in UpdateInput) (Class, error) {
	if in.Empty() {
		return Class{}, ErrEmptyUpdate
	}
	if in.Status != nil && !in.Status.Valid() {
		return Class{}, ErrInvalidStatus
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		in.Name = &trimmed
	}
	if err := s.checkInstructor(ctx, actor.TenantID, in.InstructorID); err != nil {
		return Class{}, err
	}
	if in.StartsOn != nil || in.EndsOn != nil {
		current, err := s.repo.Get(ctx, actor.TenantID, id)
		if err != nil {
			return Class{}, err
		}
		starts, ends := current.StartsOn, current.EndsOn
		if in.StartsOn != nil {
			starts = in.StartsOn
		}
		if in.EndsOn != nil {
			ends = in.EndsOn
		}
		if err := checkDates(starts, ends); err != nil {
			return Class{}, err
		}
	}
	return s.repo.Update(ctx, actor.TenantID, id, in)
}

// Delete removes a class and its enrollments.
func (s *Service) Delete(ctx context.Context, actor rbac.Identity, id uuid.UUID) error {
	return s.repo.Delete(ctx, actor.TenantID, id)
}

// Enrollments lists the students enrolled in a class.
func (s *Service) Enrollments(ctx context.Context, actor rbac.Identity, classID uuid.UUID) ([]Enrollment, error) {
	if _, err := s.repo.Get(ctx, actor.TenantID, classID); err != nil {
		return nil, err
	}
	return s.repo.ListEnrollments(ctx, actor.TenantID, classID)
}

// Enroll adds a student of the actor's tenant to a class.
func (s *Service) Enroll(ctx context.Context, actor rbac.Identity, classID, studentID uuid.UUID) (Enrollment, error) {
	return s.repo.Enroll(ctx, Enrollment{
		TenantID:   actor.TenantID,
		ClassID:    classID,
		StudentID:  studentID,
		EnrolledBy: actor.UserID,
	})
}

// Unenroll removes a student from a class.
func (s *Service) Unenroll(ctx context.Context, actor rbac.Identity, classID, studentID uuid.UUID) error {
	return s.repo.Unenroll(ctx, actor.TenantID, classID, studentID)
}

// checkInstructor accepts only users who can teach in the tenant.
func (s *Service) checkInstructor(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID) error {
	if userID == nil {
		return nil
	}
	m, err := s.staff.FindByUserAndTenant(ctx, *userID, tenantID)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			return ErrInvalidInstructor
		}
		return fmt.Errorf("classes: instructor lookup: %w", err)
	}
	if !m.CanTeach() {
		return ErrInvalidInstructor
	}
	return nil
}

func checkDates(starts, ends *time.Time) error {
	if starts != nil && ends != nil && ends.Before(*starts) {
		return ErrInvalidDates
	}
	return nil
}
