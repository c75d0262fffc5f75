package classes

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

// Handler exposes class and enrollment endpoints.
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

// MountRoutes registers class routes.
func (h *Handler) MountRoutes(r chi.Router) {
	need := func(res rbac.Resource, act rbac.Action) func(http.Handler) http.Handler {
		return h.guard.RequireAll(rbac.Need(res, act))
	}
	r.With(need(rbac.ResourceClasses, rbac.ActionRead)).Get("/", h.list)
	r.With(need(rbac.ResourceClasses, rbac.ActionWrite)).Post("/", h.create)
	r.With(need(rbac.ResourceClasses, rbac.ActionRead)).Get("/{id}", h.get)
	r.With(need(rbac.ResourceClasses, rbac.ActionWrite)).Put("/{id}", h.update)
	r.With(need(rbac.ResourceClasses, rbac.ActionDelete)).Delete("/{id}", h.delete)

	r.With(need(rbac.ResourceEnrollments, rbac.ActionRead)).Get("/{id}/enrollments", h.enrollments)
	r.With(need(rbac.ResourceEnrollments, rbac.ActionWrite)).Post("/{id}/enrollments", h.enroll)
	r.With(need(rbac.ResourceEnrollments, rbac.ActionDelete)).Delete("/{id}/enrollments/{studentID}", h.unenroll)
}

type enrollRequest struct {
	StudentID uuid.UUID `json:"student_id" validate:"required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	q := r.URL.Query()
	filter := ListFilter{Search: q.Get("search"), Status: Status(q.Get("status"))}
	if raw := q.Get("instructor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Error(w, httpx.CodeValidation, "instructor_id must be a UUID")
			return
		}
		filter.InstructorID = &id
	}
	items, page, err := h.service.List(r.Context(), actor, filter, shared.PageFromQuery(q))
	if err != nil {
		h.fail(w, "list classes", err)
		return
	}
	httpx.List(w, items, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get class", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	var in CreateInput
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "create class", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
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
	c, err := h.service.Update(r.Context(), actor, id, in)
	if err != nil {
		h.fail(w, "update class", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, "delete class", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enrollments(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	items, err := h.service.Enrollments(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "list enrollments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) enroll(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req enrollRequest
	if !h.decode(w, r, &req) {
		return
	}
	e, err := h.service.Enroll(r.Context(), actor, id, req.StudentID)
	if err != nil {
		h.fail(w, "enroll student", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) unenroll(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	studentID, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		httpx.Error(w, httpx.CodeNotFound, "enrollment not found")
		return
	}
	if err := h.service.Unenroll(r.Context(), actor, id, studentID); err != nil {
		h.fail(w, "unenroll student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (rbac.Identity, uuid.UUID, bool) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.CodeNotFound, "class not found")
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
