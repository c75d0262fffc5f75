package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehine87/educanvas/internal/attendance"
	"github.com/lehine87/educanvas/internal/instructors"
	"github.com/lehine87/educanvas/internal/observability"
	"github.com/lehine87/educanvas/internal/rbac"
)

type staticResolver struct {
	id  rbac.Identity
	err error
}

func (s staticResolver) Resolve(ctx context.Context, r *http.Request) (rbac.Identity, error) {
	return s.id, s.err
}

func newTestRouter(resolver rbac.IdentityResolver, metrics *observability.Metrics) http.Handler {
	guard := rbac.Middleware{Resolver: resolver, Observer: metrics}
	return NewRouter(RouterParams{
		Config:             &Config{},
		PermissionsHandler: rbac.NewPermissionsHandler(guard),
		Metrics:            metrics,
	})
}

func TestRouterHealthAndNotFound(t *testing.T) {
	router := newTestRouter(staticResolver{err: rbac.ErrUnauthenticated}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", responseCode(t, rr))
}

func TestRouterPermissionsGuarded(t *testing.T) {
	metrics := observability.NewMetrics()
	router := newTestRouter(staticResolver{err: rbac.ErrUnauthenticated}, metrics)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/permissions", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "AUTH_REQUIRED", responseCode(t, rr))

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `educanvas_guard_decisions_total{code="AUTH_REQUIRED"} 1`))
}

func TestRouterPermissionsForAdmin(t *testing.T) {
	admin := rbac.NewIdentity(uuid.New(), uuid.New(), rbac.RoleAdmin, nil)
	router := newTestRouter(staticResolver{id: admin}, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/permissions", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Roles []struct {
			Role  string `json:"role"`
			Level int    `json:"level"`
		} `json:"roles"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Roles, 5)
	assert.Equal(t, "owner", body.Roles[0].Role)
}

func TestRouterMountsInstructorAndAttendanceRoutes(t *testing.T) {
	guard := rbac.Middleware{Resolver: staticResolver{err: rbac.ErrUnauthenticated}}
	router := NewRouter(RouterParams{
		Config:             &Config{},
		InstructorsHandler: instructors.NewHandler(nil, nil, guard),
		AttendanceHandler:  attendance.NewHandler(nil, nil, guard),
	})

	for _, path := range []string{"/api/instructors", "/api/attendance?class_id=" + uuid.NewString()} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		assert.Equal(t, "AUTH_REQUIRED", responseCode(t, rr))
	}
}
