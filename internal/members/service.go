package members

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
)

// RepositoryPort defines data access methods for memberships.
type RepositoryPort interface {
	Finder
	Get(ctx context.Context, tenantID, id uuid.UUID) (Membership, error)
	ListByTenant(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Membership, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Membership, error)
	Create(ctx context.Context, m Membership) (Membership, error)
	UpdateRole(ctx context.Context, tenantID, id uuid.UUID, role rbac.Role) error
	UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, status Status, approvedBy *uuid.UUID) error
	SetCustomPermissions(ctx context.Context, tenantID, id uuid.UUID, custom rbac.CustomPermissions) error
	ExpirePending(ctx context.Context, cutoff time.Time) ([]Membership, error)
}

// Invalidator drops cached membership lookups after writes.
type Invalidator interface {
	Invalidate(ctx context.Context, userID, tenantID uuid.UUID)
}

// Service handles membership administration rules.
type Service struct {
	repo  RepositoryPort
	cache Invalidator
	now   func() time.Time
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, cache Invalidator) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// RequestAccess files a pending membership for the user. Owner cannot be
// requested; an empty role defaults to viewer.
func (s *Service) RequestAccess(ctx context.Context, userID, tenantID uuid.UUID, role rbac.Role) (Membership, error) {
	if role == "" {
		role = rbac.RoleViewer
	}
	if !role.Valid() || role == rbac.RoleOwner {
		return Membership{}, ErrInvalidRole
	}
	return s.repo.Create(ctx, Membership{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Status:   StatusPending,
	})
}

// BootstrapOwner grants an active owner membership without an approver.
// It is used when provisioning a tenant from the command line.
func (s *Service) BootstrapOwner(ctx context.Context, userID, tenantID uuid.UUID) (Membership, error) {
	m, err := s.repo.Create(ctx, Membership{
		UserID:   userID,
		TenantID: tenantID,
		Role:     rbac.RoleOwner,
		Status:   StatusActive,
	})
	if err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx, m)
	return m, nil
}

// List returns memberships of the actor's tenant.
func (s *Service) List(ctx context.Context, actor rbac.Identity, filter ListFilter) ([]Membership, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListByTenant(ctx, actor.TenantID, filter)
}

// Get returns one membership of the actor's tenant.
func (s *Service) Get(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Membership, error) {
	return s.repo.Get(ctx, actor.TenantID, id)
}

// ForUser lists every membership the user holds across tenants.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Approve activates a pending membership.
func (s *Service) Approve(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Membership, error) {
	target, err := s.pending(ctx, actor, id)
	if err != nil {
		return Membership{}, err
	}
	approver := actor.UserID
	if err := s.repo.UpdateStatus(ctx, actor.TenantID, id, StatusActive, &approver); err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx, target)
	now := s.now().UTC()
	target.Status = StatusActive
	target.ApprovedBy = &approver
	target.ApprovedAt = &now
	return target, nil
}

// Reject inactivates a pending membership.
func (s *Service) Reject(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Membership, error) {
	target, err := s.pending(ctx, actor, id)
	if err != nil {
		return Membership{}, err
	}
	if err := s.repo.UpdateStatus(ctx, actor.TenantID, id, StatusInactive, nil); err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx, target)
	target.Status = StatusInactive
	return target, nil
}

// ChangeRole updates a member's role. Granting owner, or touching an
// owner's membership, needs an owner actor.
func (s *Service) ChangeRole(ctx context.Context, actor rbac.Identity, id uuid.UUID, role rbac.Role) (Membership, error) {
	if !role.Valid() {
		return Membership{}, ErrInvalidRole
	}
	target, err := s.editable(ctx, actor, id)
	if err != nil {
		return Membership{}, err
	}
	if role == rbac.RoleOwner && !rbac.IsOwner(actor.Grant()) {
		return Membership{}, ErrOwnerRequired
	}
	if err := s.repo.UpdateRole(ctx, actor.TenantID, id, role); err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx, target)
	target.Role = role
	return target, nil
}

// ChangeStatus activates or deactivates a member. Pending is only reachable
// through RequestAccess.
func (s *Service) ChangeStatus(ctx context.Context, actor rbac.Identity, id uuid.UUID, status Status) (Membership, error) {
	if status != StatusActive && status != StatusInactive {
		return Membership{}, ErrInvalidStatus
	}
	target, err := s.editable(ctx, actor, id)
	if err != nil {
		return Membership{}, err
	}
	if err := s.repo.UpdateStatus(ctx, actor.TenantID, id, status, nil); err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx, target)
	target.Status = status
	return target, nil
}

// SetCustomPermissions replaces a member's overrides. A nil map clears them.
func (s *Service) SetCustomPermissions(ctx context.Context, actor rbac.Identity, id uuid.UUID, raw map[string][]string) (Membership, error) {
	if !rbac.IsOwner(actor.Grant()) {
		return Membership{}, ErrOwnerRequired
	}
	custom, err := rbac.ParseCustomPermissions(raw)
	if err != nil {
		return Membership{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	target, err := s.repo.Get(ctx, actor.TenantID, id)
	if err != nil {
		return Membership{}, err
	}
	if err := s.repo.SetCustomPermissions(ctx, actor.TenantID, id, custom); err != nil {
		return Membership{}, err
	}
	s.invalidate(ctx, target)
	target.CustomPermissions = custom
	return target, nil
}

// ExpirePending inactivates pending requests older than ttl.
func (s *Service) ExpirePending(ctx context.Context, ttl time.Duration) (int, error) {
	expired, err := s.repo.ExpirePending(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}
	for _, m := range expired {
		s.invalidate(ctx, m)
	}
	return len(expired), nil
}

func (s *Service) pending(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Membership, error) {
	target, err := s.repo.Get(ctx, actor.TenantID, id)
	if err != nil {
		return Membership{}, err
	}
	if target.Status != StatusPending {
		return Membership{}, ErrNotPending
	}
	return target, nil
}

func (s *Service) editable(ctx context.Context, actor rbac.Identity, id uuid.UUID) (Membership, error) {
	target, err := s.repo.Get(ctx, actor.TenantID, id)
	if err != nil {
		return Membership{}, err
	}
	if target.UserID == actor.UserID {
		return Membership{}, ErrSelfModification
	}
	if target.Role == rbac.RoleOwner && !rbac.IsOwner(actor.Grant()) {
		return Membership{}, ErrOwnerRequired
	}
	return target, nil
}

func (s *Service) invalidate(ctx context.Context, m Membership) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, m.UserID, m.TenantID)
	}
}
