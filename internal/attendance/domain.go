package attendance

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
)

// DateLayout is the wire format of session dates.
const DateLayout = "2006-01-02"

// Status of one student at one session.
type Status string

// Attendance marks.
const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// Valid reports whether s is a known mark.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// Record is the attendance of one student at one class session.
type Record struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	ClassID     uuid.UUID `json:"class_id"`
	StudentID   uuid.UUID `json:"student_id"`
	SessionDate time.Time `json:"session_date"`
	Status      Status    `json:"status"`
	Note        *string   `json:"note,omitempty"`
	RecordedBy  uuid.UUID `json:"recorded_by"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Mark is one roll-call line.
type Mark struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
	Status    Status    `json:"status" validate:"required,oneof=present absent late excused"`
	Note      *string   `json:"note,omitempty" validate:"omitempty,max=500"`
}

// RecordInput is a roll call for one class session. Marking a student twice
// for the same session replaces the earlier mark.
type RecordInput struct {
	ClassID     uuid.UUID `json:"class_id" validate:"required"`
	SessionDate string    `json:"session_date" validate:"required,datetime=2006-01-02"`
	Marks       []Mark    `json:"marks" validate:"required,min=1,max=200,dive"`
}

// Sheet is a validated roll call ready to persist.
type Sheet struct {
	TenantID    uuid.UUID
	ClassID     uuid.UUID
	SessionDate time.Time
	RecordedBy  uuid.UUID
	Marks       []Mark
}

// StudentIDs lists the students on the sheet in mark order.
func (s Sheet) StudentIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.Marks))
	for _, m := range s.Marks {
		out = append(out, m.StudentID)
	}
	return out
}

// ListFilter narrows attendance listings. At least one of ClassID and
// StudentID is set.
type ListFilter struct {
	ClassID   *uuid.UUID
	StudentID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// Domain errors.
var (
	ErrNotFound       = fmt.Errorf("attendance: %w", httpx.ErrNotFound)
	ErrClassNotFound  = fmt.Errorf("attendance: %w: class not found", httpx.ErrNotFound)
	ErrClassArchived  = fmt.Errorf("attendance: %w: class is archived", httpx.ErrConflict)
	ErrNotEnrolled    = fmt.Errorf("attendance: %w: student is not enrolled in the class", httpx.ErrValidation)
	ErrDuplicateMark  = fmt.Errorf("attendance: %w: student marked twice", httpx.ErrValidation)
	ErrInvalidStatus  = fmt.Errorf("attendance: %w: invalid status", httpx.ErrValidation)
	ErrInvalidDate    = fmt.Errorf("attendance: %w: invalid date", httpx.ErrValidation)
	ErrInvalidRange   = fmt.Errorf("attendance: %w: to before from", httpx.ErrValidation)
	ErrFilterRequired = fmt.Errorf("attendance: %w: class_id or student_id is required", httpx.ErrValidation)
	ErrInvalidFilter  = fmt.Errorf("attendance: %w: malformed class_id or student_id", httpx.ErrValidation)
	ErrFutureSession  = fmt.Errorf("attendance: %w: session date is in the future", httpx.ErrValidation)
)
