package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// Tenant selectors accepted on every tenant-scoped request.
const (
	TenantHeader = "X-Tenant-ID"
	TenantQuery  = "tenant_id"
)

// Resolver turns a request into a tenant-scoped identity. It accepts a
// bearer token or, failing that, the session cookie loaded upstream.
type Resolver struct {
	tokens      *TokenIssuer
	memberships members.Finder
	logger      *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(tokens *TokenIssuer, memberships members.Finder, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tokens: tokens, memberships: memberships, logger: logger}
}

// AuthenticateUser returns the caller's user ID without binding a tenant.
func (r *Resolver) AuthenticateUser(ctx context.Context, req *http.Request) (uuid.UUID, error) {
	if header := req.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return uuid.Nil, rbac.ErrUnauthenticated
		}
		userID, err := r.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", rbac.ErrUnauthenticated, err)
		}
		return userID, nil
	}
	sess := shared.SessionFromContext(ctx)
	if err := sess.Err(); err != nil {
		return uuid.Nil, fmt.Errorf("auth: load session: %w", err)
	}
	if !sess.Authenticated() {
		return uuid.Nil, rbac.ErrUnauthenticated
	}
	return sess.UserID(), nil
}

// Resolve implements rbac.IdentityResolver.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (rbac.Identity, error) {
	userID, err := r.AuthenticateUser(ctx, req)
	if err != nil {
		return rbac.Identity{}, err
	}
	tenantID, err := TenantFromRequest(req)
	if err != nil {
		return rbac.Identity{}, err
	}

	m, err := r.memberships.FindByUserAndTenant(ctx, userID, tenantID)
	if err != nil {
		if errors.Is(err, members.ErrNotFound) {
			return rbac.Identity{}, rbac.ErrTenantAccessDenied
		}
		return rbac.Identity{}, fmt.Errorf("auth: membership lookup: %w", err)
	}
	if !m.Active() {
		return rbac.Identity{}, rbac.ErrTenantAccessDenied
	}
	role, err := rbac.ParseRole(string(m.Role))
	if err != nil {
		r.logger.Warn("membership with unknown role",
			slog.String("membership_id", m.ID.String()),
			slog.String("role", string(m.Role)),
		)
		return rbac.Identity{}, rbac.ErrTenantAccessDenied
	}
	return rbac.NewIdentity(userID, tenantID, role, m.CustomPermissions), nil
}

// TenantFromRequest reads the tenant from the header, then the query string.
// There is no default tenant: a request that names none is rejected.
func TenantFromRequest(req *http.Request) (uuid.UUID, error) {
	raw := tenantParam(req)
	if raw == "" {
		return uuid.Nil, rbac.ErrTenantRequired
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed tenant id", rbac.ErrTenantRequired)
	}
	return tenantID, nil
}

func tenantParam(req *http.Request) string {
	if raw := strings.TrimSpace(req.Header.Get(TenantHeader)); raw != "" {
		return raw
	}
	return strings.TrimSpace(req.URL.Query().Get(TenantQuery))
}

var (
	_ rbac.IdentityResolver     = (*Resolver)(nil)
	_ members.UserAuthenticator = (*Resolver)(nil)
)
