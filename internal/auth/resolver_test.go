package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

type stubFinder struct {
	m   members.Membership
	err error
}

func (s stubFinder) FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (members.Membership, error) {
	if s.err != nil {
		return members.Membership{}, s.err
	}
	m := s.m
	m.UserID, m.TenantID = userID, tenantID
	return m, nil
}

func bearerRequest(t *testing.T, issuer *TokenIssuer, userID uuid.UUID, tenant string) *http.Request {
	t.Helper()
	token, _, err := issuer.Issue(userID)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
	return req
}

func TestResolveBearerIdentity(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	custom := rbac.CustomPermissions{rbac.ResourcePayments: {rbac.ActionRead}}
	resolver := NewResolver(issuer, stubFinder{m: members.Membership{Role: rbac.RoleStaff, Status: members.StatusActive, CustomPermissions: custom}}, nil)
	userID, tenantID := uuid.New(), uuid.New()

	id, err := resolver.Resolve(context.Background(), bearerRequest(t, issuer, userID, tenantID.String()))
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, tenantID, id.TenantID)
	assert.Equal(t, rbac.RoleStaff, id.Role)
	assert.Equal(t, 4, id.RoleLevel)
	assert.Equal(t, custom, id.CustomPermissions)
}

func TestResolveSessionIdentityWithQueryTenant(t *testing.T) {
	resolver := NewResolver(NewTokenIssuer("secret", time.Hour), stubFinder{m: members.Membership{Role: rbac.RoleViewer, Status: members.StatusActive}}, nil)
	userID, tenantID := uuid.New(), uuid.New()
	sess := &shared.Session{ID: "s1"}
	sess.SignIn(userID)
	req := httptest.NewRequest(http.MethodGet, "/api/students?tenant_id="+tenantID.String(), nil)
	ctx := shared.ContextWithSession(req.Context(), sess)

	id, err := resolver.Resolve(ctx, req.WithContext(ctx))
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, tenantID, id.TenantID)
}

func TestCookieSessionWithoutTenantStopsAtGuard(t *testing.T) {
	resolver := NewResolver(NewTokenIssuer("secret", time.Hour), stubFinder{m: members.Membership{Role: rbac.RoleOwner, Status: members.StatusActive}}, nil)
	sess := &shared.Session{ID: "s1"}
	sess.SignIn(uuid.New())
	guard := rbac.Middleware{Resolver: resolver}
	called := false
	handler := guard.Authenticated()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "TENANT_REQUIRED")
}

func TestResolveFailures(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	active := members.Membership{Role: rbac.RoleAdmin, Status: members.StatusActive}
	backendErr := errors.New("connection refused")
	cases := []struct {
		name   string
		finder stubFinder
		req    func() *http.Request
		want   error
	}{
		{
			name:   "no credentials",
			finder: stubFinder{m: active},
			req:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/", nil) },
			want:   rbac.ErrUnauthenticated,
		},
		{
			name:   "garbage bearer",
			finder: stubFinder{m: active},
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set("Authorization", "Bearer nope")
				return req
			},
			want: rbac.ErrUnauthenticated,
		},
		{
			name:   "basic scheme",
			finder: stubFinder{m: active},
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodGet, "/", nil)
				req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
				return req
			},
			want: rbac.ErrUnauthenticated,
		},
		{
			name:   "missing tenant",
			finder: stubFinder{m: active},
			req:    func() *http.Request { return bearerRequest(t, issuer, uuid.New(), "") },
			want:   rbac.ErrTenantRequired,
		},
		{
			name:   "malformed tenant",
			finder: stubFinder{m: active},
			req:    func() *http.Request { return bearerRequest(t, issuer, uuid.New(), "academy-1") },
			want:   rbac.ErrTenantRequired,
		},
		{
			name:   "no membership",
			finder: stubFinder{err: members.ErrNotFound},
			req:    func() *http.Request { return bearerRequest(t, issuer, uuid.New(), uuid.NewString()) },
			want:   rbac.ErrTenantAccessDenied,
		},
		{
			name:   "inactive membership",
			finder: stubFinder{m: members.Membership{Role: rbac.RoleAdmin, Status: members.StatusInactive}},
			req:    func() *http.Request { return bearerRequest(t, issuer, uuid.New(), uuid.NewString()) },
			want:   rbac.ErrTenantAccessDenied,
		},
		{
			name:   "pending membership",
			finder: stubFinder{m: members.Membership{Role: rbac.RoleViewer, Status: members.StatusPending}},
			req:    func() *http.Request { return bearerRequest(t, issuer, uuid.New(), uuid.NewString()) },
			want:   rbac.ErrTenantAccessDenied,
		},
		{
			name:   "unknown stored role",
			finder: stubFinder{m: members.Membership{Role: rbac.Role("superuser"), Status: members.StatusActive}},
			req:    func() *http.Request { return bearerRequest(t, issuer, uuid.New(), uuid.NewString()) },
			want:   rbac.ErrTenantAccessDenied,
		},
		{
			name:   "backend failure",
			finder: stubFinder{err: backendErr},
			req:    func() *http.Request { return bearerRequest(t, issuer, uuid.New(), uuid.NewString()) },
			want:   backendErr,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewResolver(issuer, tc.finder, nil)
			_, err := resolver.Resolve(context.Background(), tc.req())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInactiveMembershipDeniedThroughGuard(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	resolver := NewResolver(issuer, stubFinder{m: members.Membership{Role: rbac.RoleAdmin, Status: members.StatusInactive}}, nil)
	guard := rbac.Middleware{Resolver: resolver}
	handler := guard.RequireAll(rbac.Need(rbac.ResourceStudents, rbac.ActionRead))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, bearerRequest(t, issuer, uuid.New(), uuid.NewString()))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "TENANT_ACCESS_DENIED")
}
