package members

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
)

// UserAuthenticator resolves the caller's user ID without a tenant.
type UserAuthenticator interface {
	AuthenticateUser(ctx context.Context, r *http.Request) (uuid.UUID, error)
}

// Handler wires membership administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     rbac.Middleware
	users     UserAuthenticator
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware, users UserAuthenticator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, users: users, validator: validator.New()}
}

// MountRoutes registers tenant-scoped membership routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll(rbac.Need(rbac.ResourceUsers, rbac.ActionRead)))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdmin())
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
		r.Put("/{id}/role", h.changeRole)
		r.Put("/{id}/status", h.changeStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireOwner())
		r.Put("/{id}/permissions", h.setPermissions)
	})
}

// MountAccessRoutes registers routes used before a membership exists.
func (h *Handler) MountAccessRoutes(r chi.Router) {
	r.Post("/{tenantID}/access-requests", h.requestAccess)
}

type accessRequest struct {
	Role string `json:"role" validate:"omitempty,oneof=admin instructor staff viewer"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner admin instructor staff viewer"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

type permissionsRequest struct {
	Permissions map[string][]string `json:"permissions"`
}

func (h *Handler) requestAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := h.users.AuthenticateUser(r.Context(), r)
	if err != nil {
		if errors.Is(err, rbac.ErrUnauthenticated) {
			httpx.Error(w, httpx.CodeAuthRequired, "authentication required")
			return
		}
		h.fail(w, "authenticate user", err)
		return
	}
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		httpx.Error(w, httpx.CodeTenantRequired, "tenant identifier required")
		return
	}
	var req accessRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.RequestAccess(r.Context(), userID, tenantID, rbac.Role(req.Role))
	if err != nil {
		h.fail(w, "request access", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	items, err := h.service.List(r.Context(), actor, ListFilter{Status: Status(r.URL.Query().Get("status"))})
	if err != nil {
		h.fail(w, "list members", err)
		return
	}
	if items == nil {
		items = []Membership{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	m, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	m, err := h.service.Approve(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "approve member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	m, err := h.service.Reject(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "reject member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.service.ChangeRole(r.Context(), actor, id, rbac.Role(req.Role))
	if err != nil {
		h.fail(w, "change member role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.service.ChangeStatus(r.Context(), actor, id, Status(req.Status))
	if err != nil {
		h.fail(w, "change member status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req permissionsRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.service.SetCustomPermissions(r.Context(), actor, id, req.Permissions)
	if err != nil {
		h.fail(w, "set member permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (rbac.Identity, uuid.UUID, bool) {
	actor, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.CodeAuthRequired, "authentication required")
		return rbac.Identity{}, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.CodeNotFound, "membership not found")
		return rbac.Identity{}, uuid.Nil, false
	}
	return actor, id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrOwnerRequired) {
		httpx.Error(w, httpx.CodeOwnerRequired, "owner role required")
		return
	}
	if httpx.IsClientError(err) {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
