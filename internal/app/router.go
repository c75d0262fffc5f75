package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	audithttp "github.com/lehine87/educanvas/internal/audit/http"
	"github.com/lehine87/educanvas/internal/attendance"
	"github.com/lehine87/educanvas/internal/auth"
	"github.com/lehine87/educanvas/internal/classes"
	"github.com/lehine87/educanvas/internal/instructors"
	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/observability"
	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
	"github.com/lehine87/educanvas/internal/students"
	"github.com/lehine87/educanvas/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler        *auth.Handler
	MembersHandler     *members.Handler
	StudentsHandler    *students.Handler
	ClassesHandler     *classes.Handler
	InstructorsHandler *instructors.Handler
	AttendanceHandler  *attendance.Handler
	AuditHandler       *audithttp.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with EduCanvas defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, httpx.CodeNotFound, "route not found")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		if params.AuthHandler != nil {
			api.Route("/auth", params.AuthHandler.MountRoutes)
		}
		if params.MembersHandler != nil {
			api.Route("/members", params.MembersHandler.MountRoutes)
			api.Route("/tenants", params.MembersHandler.MountAccessRoutes)
		}
		if params.StudentsHandler != nil {
			api.Route("/students", params.StudentsHandler.MountRoutes)
		}
		if params.ClassesHandler != nil {
			api.Route("/classes", params.ClassesHandler.MountRoutes)
		}
		if params.InstructorsHandler != nil {
			api.Route("/instructors", params.InstructorsHandler.MountRoutes)
		}
		if params.AttendanceHandler != nil {
			api.Route("/attendance", params.AttendanceHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			api.Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			api.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
