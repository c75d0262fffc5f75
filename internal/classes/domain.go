package classes

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
)

// Status of a class.
type Status string

// Class states.
const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusArchived
}

// Class is a scheduled course section. Capacity zero means unlimited.
type Class struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	Name         string     `json:"name"`
	Subject      *string    `json:"subject,omitempty"`
	InstructorID *uuid.UUID `json:"instructor_id,omitempty"`
	Room         *string    `json:"room,omitempty"`
	Schedule     *string    `json:"schedule,omitempty"`
	Capacity     int        `json:"capacity"`
	Enrolled     int        `json:"enrolled"`
	Status       Status     `json:"status"`
	StartsOn     *time.Time `json:"starts_on,omitempty"`
	EndsOn       *time.Time `json:"ends_on,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Enrollment binds a student to a class.
type Enrollment struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ClassID    uuid.UUID `json:"class_id"`
	StudentID  uuid.UUID `json:"student_id"`
	EnrolledBy uuid.UUID `json:"enrolled_by"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// CreateInput carries fields for a new class.
type CreateInput struct {
	Name         string     `json:"name" validate:"required,max=120"`
	Subject      *string    `json:"subject,omitempty" validate:"omitempty,max=80"`
	InstructorID *uuid.UUID `json:"instructor_id,omitempty"`
	Room         *string    `json:"room,omitempty" validate:"omitempty,max=40"`
	Schedule     *string    `json:"schedule,omitempty" validate:"omitempty,max=200"`
	Capacity     int        `json:"capacity" validate:"gte=0,lte=1000"`
	StartsOn     *time.Time `json:"starts_on,omitempty"`
	EndsOn       *time.Time `json:"ends_on,omitempty"`
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Name         *string    `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Subject      *string    `json:"subject,omitempty" validate:"omitempty,max=80"`
	InstructorID *uuid.UUID `json:"instructor_id,omitempty"`
	Room         *string    `json:"room,omitempty" validate:"omitempty,max=40"`
	Schedule     *string    `json:"schedule,omitempty" validate:"omitempty,max=200"`
	Capacity     *int       `json:"capacity,omitempty" validate:"omitempty,gte=0,lte=1000"`
	Status       *Status    `json:"status,omitempty" validate:"omitempty,oneof=active archived"`
	StartsOn     *time.Time `json:"starts_on,omitempty"`
	EndsOn       *time.Time `json:"ends_on,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u UpdateInput) Empty() bool {
	return u.Name == nil && u.Subject == nil && u.InstructorID == nil && u.Room == nil &&
		u.Schedule == nil && u.Capacity == nil && u.Status == nil && u.StartsOn == nil && u.EndsOn == nil
}

// ListFilter narrows class listings.
type ListFilter struct {
	Search       string
	Status       Status
	InstructorID *uuid.UUID
	Limit        int
	Offset       int
}

// Domain errors.
var (
	ErrNotFound          = fmt.Errorf("classes: %w", httpx.ErrNotFound)
	ErrStudentNotFound   = fmt.Errorf("classes: %w: student not found", httpx.ErrNotFound)
	ErrEnrollmentMissing = fmt.Errorf("classes: %w: enrollment not found", httpx.ErrNotFound)
	ErrClassFull         = fmt.Errorf("classes: %w: class is at capacity", httpx.ErrConflict)
	ErrClassArchived     = fmt.Errorf("classes: %w: class is archived", httpx.ErrConflict)
	ErrAlreadyEnrolled   = fmt.Errorf("classes: %w: student already enrolled", httpx.ErrDuplicate)
	ErrCapacityTooLow    = fmt.Errorf("classes: %w: capacity below current enrollment", httpx.ErrConflict)
	ErrInvalidStatus     = fmt.Errorf("classes: %w: invalid status", httpx.ErrValidation)
	ErrInvalidDates      = fmt.Errorf("classes: %w: ends_on before starts_on", httpx.ErrValidation)
	ErrEmptyUpdate       = fmt.Errorf("classes: %w: nothing to update", httpx.ErrValidation)
	ErrInvalidInstructor = fmt.Errorf("classes: %w: instructor must be an active instructor of the academy", httpx.ErrValidation)
)
