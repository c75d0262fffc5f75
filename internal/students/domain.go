package students

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
)

// Status tracks a student's enrolment lifecycle at the academy.
type Status string

// Student states.
const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusGraduated Status = "graduated"
	StatusWithdrawn Status = "withdrawn"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusGraduated, StatusWithdrawn:
		return true
	}
	return false
}

// Student is a learner registered with one tenant.
type Student struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	Name        string     `json:"name"`
	Email       *string    `json:"email,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	ParentName  *string    `json:"parent_name,omitempty"`
	ParentPhone *string    `json:"parent_phone,omitempty"`
	Grade       *string    `json:"grade,omitempty"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Status      Status     `json:"status"`
	Notes       *string    `json:"notes,omitempty"`
	CreatedBy   uuid.UUID  `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateInput carries fields for a new student.
type CreateInput struct {
	Name        string     `json:"name" validate:"required,max=120"`
	Email       *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	ParentName  *string    `json:"parent_name,omitempty" validate:"omitempty,max=120"`
	ParentPhone *string    `json:"parent_phone,omitempty" validate:"omitempty,max=30"`
	Grade       *string    `json:"grade,omitempty" validate:"omitempty,max=30"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Status      Status     `json:"status,omitempty" validate:"omitempty,oneof=active inactive graduated withdrawn"`
	Notes       *string    `json:"notes,omitempty"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name        *string    `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Email       *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone       *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	ParentName  *string    `json:"parent_name,omitempty" validate:"omitempty,max=120"`
	ParentPhone *string    `json:"parent_phone,omitempty" validate:"omitempty,max=30"`
	Grade       *string    `json:"grade,omitempty" validate:"omitempty,max=30"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Status      *Status    `json:"status,omitempty" validate:"omitempty,oneof=active inactive graduated withdrawn"`
	Notes       *string    `json:"notes,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.ParentName == nil &&
		u.ParentPhone == nil && u.Grade == nil && u.BirthDate == nil && u.Status == nil && u.Notes == nil
}

// ListFilter narrows student listings.
type ListFilter struct {
	Search string
	Status Status
	Limit  int
	Offset int
}

// Domain errors.
var (
	ErrNotFound      = fmt.Errorf("students: %w", httpx.ErrNotFound)
	ErrDuplicate     = fmt.Errorf("students: %w: email already registered", httpx.ErrDuplicate)
	ErrInvalidStatus = fmt.Errorf("students: %w: invalid status", httpx.ErrValidation)
	ErrEmptyUpdate   = fmt.Errorf("students: %w: nothing to update", httpx.ErrValidation)
	ErrInUse         = fmt.Errorf("students: %w: student has enrollments", httpx.ErrConflict)
)
