package attendance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lehine87/educanvas/internal/rbac"
)

type fixedResolver struct {
	id rbac.Identity
}

func (f fixedResolver) Resolve(ctx context.Context, r *http.Request) (rbac.Identity, error) {
	return f.id, nil
}

func newAttendanceRouter(repo *memRepo, id rbac.Identity) http.Handler {
	svc := NewService(repo)
	fixedNow(svc, "2026-03-10")
	h := NewHandler(nil, svc, rbac.Middleware{Resolver: fixedResolver{id: id}})
	r := chi.NewRouter()
	r.Route("/api/attendance", h.MountRoutes)
	return r
}

func rollCall(classID uuid.UUID, marks ...string) string {
	return `{"class_id":"` + classID.String() + `","session_date":"2026-03-10","marks":[` + strings.Join(marks, ",") + `]}`
}

func TestInstructorTakesRollButCannotDelete(t *testing.T) {
	tenantID := uuid.New()
	repo := newMemRepo()
	classID, mina := uuid.New(), uuid.New()
	repo.enroll(classID, mina)
	router := newAttendanceRouter(repo, actor(tenantID, rbac.RoleInstructor))

	rr := httptest.NewRecorder()
	body := rollCall(classID, `{"student_id":"`+mina.String()+`","status":"present"}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/attendance", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)
	var out struct {
		Data []Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, StatusPresent, out.Data[0].Status)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/attendance?class_id="+classID.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), mina.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/attendance/"+out.Data[0].ID.String(), nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "PERMISSION_DENIED")
	assert.Len(t, repo.rows, 1)
}

func TestViewerCannotTakeRoll(t *testing.T) {
	repo := newMemRepo()
	classID, mina := uuid.New(), uuid.New()
	repo.enroll(classID, mina)
	router := newAttendanceRouter(repo, actor(uuid.New(), rbac.RoleViewer))

	rr := httptest.NewRecorder()
	body := rollCall(classID, `{"student_id":"`+mina.String()+`","status":"present"}`)
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/attendance", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, repo.rows)
}

func TestRollCallValidation(t *testing.T) {
	repo := newMemRepo()
	classID, mina := uuid.New(), uuid.New()
	repo.enroll(classID, mina)
	router := newAttendanceRouter(repo, actor(uuid.New(), rbac.RoleAdmin))

	cases := map[string]string{
		"no marks":       rollCall(classID),
		"bad status":     rollCall(classID, `{"student_id":"`+mina.String()+`","status":"asleep"}`),
		"bad date":       `{"class_id":"` + classID.String() + `","session_date":"March 10","marks":[{"student_id":"` + mina.String() + `","status":"present"}]}`,
		"not enrolled":   rollCall(classID, `{"student_id":"`+uuid.NewString()+`","status":"present"}`),
		"missing class":  `{"session_date":"2026-03-10","marks":[{"student_id":"` + mina.String() + `","status":"present"}]}`,
		"student repeat": rollCall(classID, `{"student_id":"`+mina.String()+`","status":"present"}`, `{"student_id":"`+mina.String()+`","status":"late"}`),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/attendance", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), "VALIDATION_FAILED")
		})
	}
	assert.Empty(t, repo.rows)
}

func TestListFilterParsing(t *testing.T) {
	router := newAttendanceRouter(newMemRepo(), actor(uuid.New(), rbac.RoleViewer))

	for _, target := range []string{
		"/api/attendance",
		"/api/attendance?class_id=nope",
		"/api/attendance?student_id=" + uuid.NewString() + "&from=yesterday",
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/attendance?student_id="+uuid.NewString()+"&from=2026-03-01&to=2026-03-31", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
