package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lehine87/educanvas/internal/platform/httpx"
)

// PermissionsHandler exposes the static role hierarchy and default matrix.
type PermissionsHandler struct {
	guard Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(guard Middleware) *PermissionsHandler {
	return &PermissionsHandler{guard: guard}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(Need(ResourceUsers, ActionRead)))
		r.Get("/", h.listPermissions)
	})
}

type roleView struct {
	Role     Role                  `json:"role"`
	Level    int                   `json:"level"`
	Bypass   bool                  `json:"bypass"`
	Defaults map[Resource][]Action `json:"defaults"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	roles := make([]roleView, 0, len(Roles()))
	for _, role := range Roles() {
		view := roleView{Role: role, Level: LevelOf(role), Bypass: role == RoleOwner, Defaults: map[Resource][]Action{}}
		for _, res := range Resources() {
			if actions := DefaultActions(role, res); len(actions) > 0 {
				view.Defaults[res] = actions
			}
		}
		roles = append(roles, view)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"roles":     roles,
		"resources": Resources(),
		"actions":   Actions(),
	})
}
