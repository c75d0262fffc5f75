package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehine87/educanvas/internal/platform/httpx"
)

// Resolver failures the guard knows how to map. Resolvers return these
// (optionally wrapped); anything else is treated as an internal error.
var (
	ErrUnauthenticated    = errors.New("rbac: unauthenticated")
	ErrTenantRequired     = errors.New("rbac: tenant required")
	ErrTenantAccessDenied = errors.New("rbac: tenant access denied")
)

// IdentityResolver authenticates a request and binds it to a tenant.
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (Identity, error)
}

// AccessEvent describes a request that passed the guard.
type AccessEvent struct {
	Identity    Identity
	Method      string
	Route       string
	Permissions []Requirement
	OwnerOnly   bool
	AdminOnly   bool
	At          time.Time
}

// AccessRecorder persists access events. Failures never reach the caller.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, event AccessEvent) error
}

// DecisionObserver receives the outcome code of every guard evaluation.
type DecisionObserver interface {
	ObserveDecision(code string)
}

// Requirements declares what a route needs. Owner, admin and permission
// requirements imply authentication.
type Requirements struct {
	RequireAuth  bool
	RequireOwner bool
	RequireAdmin bool
	Permissions  []Requirement
}

func (r Requirements) needsIdentity() bool {
	return r.RequireAuth || r.RequireOwner || r.RequireAdmin || len(r.Permissions) > 0
}

// Middleware wires authorization checks for HTTP handlers.
type Middleware struct {
	Resolver IdentityResolver
	Recorder AccessRecorder
	Observer DecisionObserver
	Logger   *slog.Logger
	Now      func() time.Time
}

// Authenticated requires a resolved tenant identity only.
func (m Middleware) Authenticated() func(http.Handler) http.Handler {
	return m.Require(Requirements{RequireAuth: true})
}

// RequireOwner restricts the route to tenant owners.
func (m Middleware) RequireOwner() func(http.Handler) http.Handler {
	return m.Require(Requirements{RequireOwner: true})
}

// RequireAdmin restricts the route to admins and owners.
func (m Middleware) RequireAdmin() func(http.Handler) http.Handler {
	return m.Require(Requirements{RequireAdmin: true})
}

// RequireAll ensures the identity satisfies every listed permission.
func (m Middleware) RequireAll(perms ...Requirement) func(http.Handler) http.Handler {
	return m.Require(Requirements{Permissions: perms})
}

// Require evaluates reqs in a fixed order, stopping at the first failure:
// identity, owner, admin, permissions.
func (m Middleware) Require(reqs Requirements) func(http.Handler) http.Handler {
	perms := make([]Requirement, len(reqs.Permissions))
	copy(perms, reqs.Permissions)
	return func(next http.Handler) http.Handler {
		if !reqs.needsIdentity() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, denial, ok := m.authorize(r, reqs, perms)
			if !ok {
				m.deny(w, denial)
				return
			}

			m.observe("ALLOWED")
			ctx := ContextWithIdentity(r.Context(), id)
			m.record(ctx, AccessEvent{
				Identity:    id,
				Method:      r.Method,
				Route:       r.URL.Path,
				Permissions: perms,
				OwnerOnly:   reqs.RequireOwner,
				AdminOnly:   reqs.RequireAdmin,
				At:          m.now(),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authorize runs the guard's own checks. A panic here becomes INTERNAL_ERROR;
// panics raised by the wrapped handler are left to the outer recoverer.
func (m Middleware) authorize(r *http.Request, reqs Requirements, perms []Requirement) (id Identity, denial httpx.ErrorDetail, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			m.logger().Error("rbac guard panic", slog.Any("panic", rec), slog.String("path", r.URL.Path))
			id, denial, ok = Identity{}, httpx.ErrorDetail{Code: httpx.CodeInternal, Message: "internal error"}, false
		}
	}()

	id, err := m.resolve(r)
	if err != nil {
		return Identity{}, m.resolveFailure(r, err), false
	}
	grant := id.Grant()
	if reqs.RequireOwner && !IsOwner(grant) {
		return Identity{}, httpx.ErrorDetail{Code: httpx.CodeOwnerRequired, Message: "owner role required"}, false
	}
	if reqs.RequireAdmin && !IsAdmin(grant) {
		return Identity{}, httpx.ErrorDetail{Code: httpx.CodeAdminRequired, Message: "admin role required"}, false
	}
	if missing := MissingPermissions(grant, perms); len(missing) > 0 {
		return Identity{}, httpx.ErrorDetail{Code: httpx.CodePermissionDenied, Message: "insufficient permissions", Missing: missing}, false
	}
	return id, httpx.ErrorDetail{}, true
}

func (m Middleware) resolve(r *http.Request) (Identity, error) {
	if m.Resolver == nil {
		return Identity{}, errors.New("rbac: resolver not configured")
	}
	return m.Resolver.Resolve(r.Context(), r)
}

func (m Middleware) resolveFailure(r *http.Request, err error) httpx.ErrorDetail {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return httpx.ErrorDetail{Code: httpx.CodeAuthRequired, Message: "authentication required"}
	case errors.Is(err, ErrTenantRequired):
		return httpx.ErrorDetail{Code: httpx.CodeTenantRequired, Message: "tenant identifier required"}
	case errors.Is(err, ErrTenantAccessDenied):
		return httpx.ErrorDetail{Code: httpx.CodeTenantAccessDenied, Message: "no active membership for tenant"}
	default:
		m.logger().Error("rbac resolve identity", slog.Any("error", err), slog.String("path", r.URL.Path))
		return httpx.ErrorDetail{Code: httpx.CodeInternal, Message: "internal error"}
	}
}

func (m Middleware) deny(w http.ResponseWriter, detail httpx.ErrorDetail) {
	m.observe(string(detail.Code))
	httpx.Write(w, detail)
}

func (m Middleware) record(ctx context.Context, event AccessEvent) {
	if m.Recorder == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			m.logger().Error("rbac record access panic", slog.Any("panic", rec))
		}
	}()
	if err := m.Recorder.RecordAccess(ctx, event); err != nil {
		m.logger().Warn("rbac record access",
			slog.Any("error", err),
			slog.String("user_id", event.Identity.UserID.String()),
			slog.String("tenant_id", event.Identity.TenantID.String()),
		)
	}
}

func (m Middleware) observe(code string) {
	if m.Observer != nil {
		m.Observer.ObserveDecision(code)
	}
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m Middleware) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}
