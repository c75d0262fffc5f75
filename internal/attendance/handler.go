package attendance

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// Handler exposes attendance endpoints.
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

// MountRoutes registers attendance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceAttendance, rbac.ActionRead))).Get("/", h.list)
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceAttendance, rbac.ActionWrite))).Put("/", h.record)
	r.With(h.guard.RequireAll(rbac.Need(rbac.ResourceAttendance, rbac.ActionDelete))).Delete("/{id}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	q := r.URL.Query()
	filter, err := filterFromQuery(q)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, page, err := h.service.List(r.Context(), actor, filter, shared.PageFromQuery(q))
	if err != nil {
		h.fail(w, "list attendance", err)
		return
	}
	httpx.List(w, items, page)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	var in RecordInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	records, err := h.service.Record(r.Context(), actor, in)
	if err != nil {
		h.fail(w, "record attendance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": records})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, httpx.CodeNotFound, "attendance record not found")
		return
	}
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, "delete attendance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func filterFromQuery(q url.Values) (ListFilter, error) {
	var (
		f   ListFilter
		err error
	)
	if f.ClassID, err = optionalUUID(q.Get("class_id")); err != nil {
		return ListFilter{}, err
	}
	if f.StudentID, err = optionalUUID(q.Get("student_id")); err != nil {
		return ListFilter{}, err
	}
	if f.From, err = optionalDate(q.Get("from")); err != nil {
		return ListFilter{}, err
	}
	if f.To, err = optionalDate(q.Get("to")); err != nil {
		return ListFilter{}, err
	}
	return f, nil
}

func optionalUUID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrInvalidFilter
	}
	return &id, nil
}

func optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &d, nil
}
