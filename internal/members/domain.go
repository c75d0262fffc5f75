package members

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
)

// Status is the lifecycle state of a membership. Rows are never deleted;
// they move between states instead.
type Status string

// Membership states.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusPending  Status = "pending"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusPending:
		return true
	}
	return false
}

// Membership binds one user to one tenant.
type Membership struct {
	ID                uuid.UUID              `json:"id"`
	UserID            uuid.UUID              `json:"user_id"`
	TenantID          uuid.UUID              `json:"tenant_id"`
	Role              rbac.Role              `json:"role"`
	Status            Status                 `json:"status"`
	CustomPermissions rbac.CustomPermissions `json:"custom_permissions"`
	ApprovedBy        *uuid.UUID             `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time             `json:"approved_at,omitempty"`
	Email             string                 `json:"email,omitempty"`
	Name              string                 `json:"name,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// Grant projects the membership onto evaluator input.
func (m Membership) Grant() rbac.Grant {
	return rbac.Grant{Role: m.Role, CustomPermissions: m.CustomPermissions}
}

// Active reports whether the membership may pass permission checks.
func (m Membership) Active() bool {
	return m.Status == StatusActive
}

// CanTeach reports whether the member may be assigned classes or hold an
// instructor profile: active, and instructor or above.
func (m Membership) CanTeach() bool {
	return m.Active() && rbac.IsInstructor(m.Grant())
}

// ListFilter narrows tenant listings.
type ListFilter struct {
	Status Status
}

// Domain errors.
var (
	ErrNotFound         = fmt.Errorf("members: %w", httpx.ErrNotFound)
	ErrAlreadyMember    = fmt.Errorf("members: %w: membership already exists", httpx.ErrDuplicate)
	ErrNotPending       = fmt.Errorf("members: %w: membership is not pending", httpx.ErrConflict)
	ErrSelfModification = fmt.Errorf("members: %w: cannot modify own membership", httpx.ErrForbidden)
	ErrOwnerRequired    = fmt.Errorf("members: %w: owner role required", httpx.ErrForbidden)
	ErrInvalidRole      = fmt.Errorf("members: %w: invalid role", httpx.ErrValidation)
	ErrInvalidStatus    = fmt.Errorf("members: %w: invalid status", httpx.ErrValidation)
)
