package instructors

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
)

// Status of an instructor profile.
type Status string

// Instructor states.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Instructor is the teaching profile of a member. One profile per user and
// tenant; the membership still decides what the user may do.
type Instructor struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Name           string     `json:"name"`
	Email          *string    `json:"email,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	Specialization *string    `json:"specialization,omitempty"`
	HiredOn        *time.Time `json:"hired_on,omitempty"`
	Status         Status     `json:"status"`
	Notes          *string    `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateInput carries fields for a new profile.
type CreateInput struct {
	UserID         uuid.UUID  `json:"user_id" validate:"required"`
	Name           string     `json:"name" validate:"required,max=120"`
	Email          *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	Specialization *string    `json:"specialization,omitempty" validate:"omitempty,max=80"`
	HiredOn        *time.Time `json:"hired_on,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name           *string    `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Email          *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone          *string    `json:"phone,omitempty" validate:"omitempty,max=30"`
	Specialization *string    `json:"specialization,omitempty" validate:"omitempty,max=80"`
	HiredOn        *time.Time `json:"hired_on,omitempty"`
	Status         *Status    `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Notes          *string    `json:"notes,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Email == nil && u.Phone == nil && u.Specialization == nil &&
		u.HiredOn == nil && u.Status == nil && u.Notes == nil
}

// ListFilter narrows instructor listings.
type ListFilter struct {
	Search string
	Status Status
	Limit  int
	Offset int
}

// Domain errors.
var (
	ErrNotFound      = fmt.Errorf("instructors: %w", httpx.ErrNotFound)
	ErrDuplicate     = fmt.Errorf("instructors: %w: user already has an instructor profile", httpx.ErrDuplicate)
	ErrNotTeaching   = fmt.Errorf("instructors: %w: user must be an active instructor of the academy", httpx.ErrValidation)
	ErrInvalidStatus = fmt.Errorf("instructors: %w: invalid status", httpx.ErrValidation)
	ErrEmptyUpdate   = fmt.Errorf("instructors: %w: nothing to update", httpx.ErrValidation)
)
