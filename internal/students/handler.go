package students

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

// Handler exposes student endpoints.
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

// MountRoutes registers student routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceStudents, rbac.ActionRead))).Get("/", h.list)
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceStudents, rbac.ActionWrite))).Post("/", h.create)
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceStudents, rbac.ActionRead))).Get("/{id}", h.get)
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceStudents, rbac.ActionWrite))).Put("/{id}", h.update)
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceStudents, rbac.ActionDelete))).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	q := r.URL.Query()
	items, page, err := h.service.List(r.Context(), actor, q.Get("search"), Status(q.Get("status")), shared.PageFromQuery(q))
	if err != nil {
		h.fail(w, "list students", err)
		return
	}
	httpx.List(w, items, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	s, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get student", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	var in CreateInput
	if !h.decode(w, r, &in) {
		return
	}
	s, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "create student", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if !h.decode(w, r, &in) {
		return
	}
	s, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, "update student", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, "delete student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (rbac.Identity, uuid.UUID, bool) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.CodeNotFound, "student not found")
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
	if httpx.IsClientError(err) {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
