package rbac

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated caller within one tenant, rebuilt on every
// guarded request from the credential and the membership row.
type Identity struct {
	UserID            uuid.UUID
	TenantID          uuid.UUID
	Role              Role
	RoleLevel         int
	CustomPermissions CustomPermissions
}

// NewIdentity assembles an Identity, deriving the role level.
func NewIdentity(userID, tenantID uuid.UUID, role Role, custom CustomPermissions) Identity {
	return Identity{
		UserID:            userID,
		TenantID:          tenantID,
		Role:              role,
		RoleLevel:         LevelOf(role),
		CustomPermissions: custom,
	}
}

// Grant projects the identity onto evaluator input.
func (i Identity) Grant() Grant {
	return Grant{Role: i.Role, CustomPermissions: i.CustomPermissions}
}

// Can is shorthand for HasPermission on the identity's grant.
func (i Identity) Can(resource Resource, action Action) bool {
	return HasPermission(i.Grant(), resource, action)
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity placed by the guard.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
