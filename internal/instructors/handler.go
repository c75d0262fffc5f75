package instructors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// Handler exposes instructor profile endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers instructor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	read := h.guard.RequireAll(rbac.Need(rbac.ResourceInstructors, rbac.ActionRead))
	write := h.guard.RequireAll(rbac.Need(rbac.ResourceInstructors, rbac.ActionWrite))

	r.With(read).Get("/", h.list)
	r.With(write).Post("/", h.create)
	r.With(read).Get("/{id}", h.get)
	r.With(write).Put("/{id}", h.update)
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceInstructors, rbac.ActionDelete))).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	q := r.URL.Query()
	items, page, err := h.service.List(r.Context(), actor, q.Get("search"), Status(q.Get("status")), shared.PageFromQuery(q))
	if err != nil {
		h.fail(w, "list instructors", err)
		return
	}
	httpx.List(w, items, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	in, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get instructor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, in)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	var req CreateInput
	if !h.decode(w, r, &req) {
		return
	}
	in, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.fail(w, "create instructor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, in)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req UpdateInput
	if !h.decode(w, r, &req) {
		return
	}
	in, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.fail(w, "update instructor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, in)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, "delete instructor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (rbac.Identity, uuid.UUID, bool) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.CodeNotFound, "instructor not found")
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
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
