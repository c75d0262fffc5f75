package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/auth"
	"github.com/lehine87/educanvas/internal/members"
)

// AccountCreator provisions user accounts.
type AccountCreator interface {
	CreateUser(ctx context.Context, email, name, password string) (*auth.User, error)
}

// OwnerGranter grants the first owner membership of a tenant.
type OwnerGranter interface {
	BootstrapOwner(ctx context.Context, userID, tenantID uuid.UUID) (members.Membership, error)
}

// BootstrapOptions describes the tenant owner to provision.
type BootstrapOptions struct {
	Email    string
	Name     string
	Password string
	TenantID uuid.UUID
}

// BootstrapResult is what Bootstrap created.
type BootstrapResult struct {
	User       *auth.User
	Membership members.Membership
}

// Bootstrap creates an owner account and its active owner membership. A zero
// TenantID allocates a new tenant identifier.
func Bootstrap(ctx context.Context, accounts AccountCreator, owners OwnerGranter, opts BootstrapOptions) (BootstrapResult, error) {
	if accounts == nil || owners == nil {
		return BootstrapResult{}, errors.New("bootstrap: dependencies not configured")
	}
	tenantID := opts.TenantID
	if tenantID == uuid.Nil {
		tenantID = uuid.New()
	}
	user, err := accounts.CreateUser(ctx, opts.Email, opts.Name, opts.Password)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("bootstrap: create user: %w", err)
	}
	m, err := owners.BootstrapOwner(ctx, user.ID, tenantID)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("bootstrap: grant owner: %w", err)
	}
	return BootstrapResult{User: user, Membership: m}, nil
}
