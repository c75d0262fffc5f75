package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
)

// CSV exports scan whole date ranges, so they get their own budget on top of
// the API-wide limiter.
const (
	exportsPerUser   = 10
	exportsPerTenant = 30
	exportWindow     = time.Minute
)

// MountRoutes registers the timeline and CSV export under the admin guard.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Group(func(gr chi.Router) {
		gr.Use(h.guard.RequireAdmin())
		gr.Get("/", h.handleTimeline)
		gr.With(
			exportLimiter(exportsPerTenant, tenantKey),
			exportLimiter(exportsPerUser, userKey),
		).Get("/export.csv", h.handleExport)
	})
}

func exportLimiter(limit int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(limit, exportWindow,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.Error(w, httpx.CodeRateLimited, "too many export requests")
		}),
	)
}

// Both keys run behind RequireAdmin, so an identity is always present.
func tenantKey(r *http.Request) (string, error) {
	id, _ := rbac.IdentityFromContext(r.Context())
	return "tenant:" + id.TenantID.String(), nil
}

func userKey(r *http.Request) (string, error) {
	id, _ := rbac.IdentityFromContext(r.Context())
	return "tenant:" + id.TenantID.String() + ":user:" + id.UserID.String(), nil
}
