package perf

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/rbac"
)

type fixedResolver struct {
	id rbac.Identity
}

func (f fixedResolver) Resolve(context.Context, *http.Request) (rbac.Identity, error) {
	return f.id, nil
}

type discardRecorder struct{}

func (discardRecorder) RecordAccess(context.Context, rbac.AccessEvent) error { return nil }

func guardedHandler(role rbac.Role, custom rbac.CustomPermissions) http.Handler {
	guard := rbac.Middleware{
		Resolver: fixedResolver{id: rbac.NewIdentity(uuid.New(), uuid.New(), role, custom)},
		Recorder: discardRecorder{},
	}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return guard.RequireAll(
		rbac.Need(rbac.ResourceStudents, rbac.ActionRead),
		rbac.Need(rbac.ResourceEnrollments, rbac.ActionWrite),
		rbac.Need(rbac.ResourcePayments, rbac.ActionRead),
	)(next)
}

func TestGuardLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		role      rbac.Role
		custom    rbac.CustomPermissions
		status    int
		threshold time.Duration
	}{
		{name: "allowed", role: rbac.RoleStaff, status: http.StatusNoContent, threshold: 5 * time.Millisecond},
		{name: "denied", role: rbac.RoleViewer, status: http.StatusForbidden, threshold: 5 * time.Millisecond},
		{
			name: "custom override",
			role: rbac.RoleViewer,
			custom: rbac.CustomPermissions{
				rbac.ResourceStudents:    {rbac.ActionRead},
				rbac.ResourceEnrollments: {rbac.ActionRead, rbac.ActionWrite},
				rbac.ResourcePayments:    {rbac.ActionRead},
			},
			status:    http.StatusNoContent,
			threshold: 5 * time.Millisecond,
		},
	}

	for _, scenario := range scenarios {
		handler := guardedHandler(scenario.role, scenario.custom)
		samples := make([]time.Duration, 0, 200)
		for i := 0; i < 200; i++ {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/enrollments", nil)
			start := time.Now()
			handler.ServeHTTP(rr, req)
			samples = append(samples, time.Since(start))
			if rr.Code != scenario.status {
				t.Fatalf("%s: expected status %d, got %d", scenario.name, scenario.status, rr.Code)
			}
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s guard latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func BenchmarkGuardAllowed(b *testing.B) {
	handler := guardedHandler(rbac.RoleStaff, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/enrollments", nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkMissingPermissions(b *testing.B) {
	grant := rbac.Grant{Role: rbac.RoleInstructor}
	required := []rbac.Requirement{
		rbac.Need(rbac.ResourceStudents, rbac.ActionRead),
		rbac.Need(rbac.ResourcePayments, rbac.ActionWrite),
		rbac.Need(rbac.ResourceUsers, rbac.ActionAdmin),
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = rbac.MissingPermissions(grant, required)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
