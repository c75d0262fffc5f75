package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
)

// MembershipLister lists the tenants a user belongs to.
type MembershipLister interface {
	ForUser(ctx context.Context, userID uuid.UUID) ([]members.Membership, error)
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	resolver       *Resolver
	guard          rbac.Middleware
	memberships    MembershipLister
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, guard rbac.Middleware, memberships MembershipLister, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		resolver:       resolver,
		guard:          guard,
		memberships:    memberships,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/tenants", h.listTenants)
	r.With(h.guard.Authenticated()).Get("/me", h.me)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type meResponse struct {
	UserID       uuid.UUID         `json:"user_id"`
	TenantID     uuid.UUID         `json:"tenant_id"`
	Capabilities rbac.Capabilities `json:"capabilities"`
	CSRFToken    string            `json:"csrf_token,omitempty"`
}

type tenantEntry struct {
	TenantID uuid.UUID      `json:"tenant_id"`
	Role     rbac.Role      `json:"role"`
	Status   members.Status `json:"status"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Error(w, httpx.CodeAuthRequired, "invalid email or password")
			return
		}
		h.logger.Error("login", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
			h.logger.Warn("renew session", slog.Any("error", err))
		}
		sess.SignIn(result.User.ID)
		if token, err := h.csrfManager.Token(sess); err == nil {
			result.CSRFToken = token
		}
		expiresAt := time.Now().Add(h.sessionManager.TTL())
		if err := h.service.RegisterSession(r.Context(), sess.ID, result.User.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess.Authenticated() {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := rbac.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, httpx.CodeAuthRequired, "authentication required")
		return
	}
	resp := meResponse{
		UserID:       id.UserID,
		TenantID:     id.TenantID,
		Capabilities: rbac.CapabilitiesFor(id.Grant()),
	}
	if sess := shared.SessionFromContext(r.Context()); sess.Authenticated() {
		resp.CSRFToken, _ = h.csrfManager.Token(sess)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	userID, err := h.resolver.AuthenticateUser(r.Context(), r)
	if err != nil {
		if errors.Is(err, rbac.ErrUnauthenticated) {
			httpx.Error(w, httpx.CodeAuthRequired, "authentication required")
			return
		}
		h.logger.Error("authenticate user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	items, err := h.memberships.ForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list tenants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]tenantEntry, 0, len(items))
	for _, m := range items {
		out = append(out, tenantEntry{TenantID: m.TenantID, Role: m.Role, Status: m.Status})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": out})
}
