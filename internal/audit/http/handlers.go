package audithttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/audit"
	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

const (
	dateLayout        = "2006-01-02"
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for audit listings.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters, page shared.PageRequest) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.Record, error)
}

// Handler serves the tenant audit trail to admins.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	guard   rbac.Middleware
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	filters, err := parseFilters(r, actor.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters, shared.PageFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, "load audit timeline", err)
		return
	}
	httpx.List(w, result.Rows, result.Paging)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	filters, err := parseFilters(r, actor.TenantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.fail(w, "export audit timeline", err)
		return
	}
	csvBytes, err := audit.WriteCSV(rows)
	if err != nil {
		h.fail(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-logs.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads actor, resource, risk and an optional from/to date
// window of at most 90 days.
func parseFilters(r *http.Request, tenantID uuid.UUID) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	filters := audit.TimelineFilters{
		TenantID: tenantID,
		Resource: strings.TrimSpace(q.Get("resource")),
		Risk:     audit.Risk(strings.TrimSpace(q.Get("risk"))),
	}
	if raw := strings.TrimSpace(q.Get("actor")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return audit.TimelineFilters{}, validationError("actor")
		}
		filters.Actor = &id
	}
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			return audit.TimelineFilters{}, validationError("from")
		}
		filters.From = from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			return audit.TimelineFilters{}, validationError("to")
		}
		filters.To = to.Add(24 * time.Hour)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() {
		if !filters.From.Before(filters.To) || filters.To.Sub(filters.From) > maxDateRangeHours*time.Hour {
			return audit.TimelineFilters{}, validationError("range")
		}
	}
	return filters, nil
}

func validationError(field string) error {
	return &fieldError{field: field}
}

type fieldError struct {
	field string
}

func (e *fieldError) Error() string {
	return "invalid " + e.field
}

func (e *fieldError) Unwrap() error {
	return httpx.ErrValidation
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsClientError(err) {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
