package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lehine87/educanvas/internal/auth"
	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
	_ "github.com/lehine87/educanvas/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]uuid.UUID
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, auth.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, auth.ErrUserNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateUser(ctx context.Context, email, name, passwordHash string) (*auth.User, error) {
	if s.user != nil && strings.EqualFold(s.user.Email, email) {
		return nil, auth.ErrEmailTaken
	}
	s.user = &auth.User{ID: uuid.New(), Email: email, Name: name, PasswordHash: passwordHash, IsActive: true}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID uuid.UUID, expiresAt time.Time, ip, ua string) error {
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type stubMemberships struct {
	items []members.Membership
}

func (s stubMemberships) FindByUserAndTenant(ctx context.Context, userID, tenantID uuid.UUID) (members.Membership, error) {
	for _, m := range s.items {
		if m.UserID == userID && m.TenantID == tenantID {
			return m, nil
		}
	}
	return members.Membership{}, members.ErrNotFound
}

func (s stubMemberships) ForUser(ctx context.Context, userID uuid.UUID) ([]members.Membership, error) {
	var out []members.Membership
	for _, m := range s.items {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fixture struct {
	router          http.Handler
	redis           *miniredis.Miniredis
	sessions        *shared.SessionManager
	tokens          *auth.TokenIssuer
	repo            *stubRepo
	user            *auth.User
	tenantID        uuid.UUID
	pendingTenantID uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &auth.User{ID: uuid.New(), Email: "owner@academy.test", PasswordHash: string(hashed), IsActive: true}
	repo := &stubRepo{user: user, sessions: make(map[string]uuid.UUID)}
	tenantID, pendingTenantID := uuid.New(), uuid.New()
	memberships := stubMemberships{items: []members.Membership{
		{ID: uuid.New(), UserID: user.ID, TenantID: tenantID, Role: rbac.RoleInstructor, Status: members.StatusActive},
		{ID: uuid.New(), UserID: user.ID, TenantID: pendingTenantID, Role: rbac.RoleViewer, Status: members.StatusPending},
	}}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })
	sessions := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	tokens := auth.NewTokenIssuer("jwt-secret", time.Hour)
	resolver := auth.NewResolver(tokens, memberships, nil)
	guard := rbac.Middleware{Resolver: resolver}
	handler := auth.NewHandler(nil, auth.NewService(repo, tokens), resolver, guard, memberships, sessions, shared.NewCSRFManager("csrfsecret"))

	r := chi.NewRouter()
	r.Use(sessions.Middleware(nil))
	r.Route("/api/auth", handler.MountRoutes)
	return fixture{router: r, redis: mr, sessions: sessions, tokens: tokens, repo: repo, user: user, tenantID: tenantID, pendingTenantID: pendingTenantID}
}

func (f fixture) login(t *testing.T, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"owner@academy.test","password":"` + password + `"}`
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body)))
	return rr
}

func TestLoginIssuesTokenAndSession(t *testing.T) {
	f := newFixture(t)
	rr := f.login(t, "correctpass")
	require.Equal(t, http.StatusOK, rr.Code)

	var result auth.LoginResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.Equal(t, f.user.ID, result.User.ID)
	assert.NotEmpty(t, result.CSRFToken)
	assert.NotContains(t, rr.Body.String(), "password_hash")

	userID, err := f.tokens.Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, userID)
	assert.Len(t, f.repo.sessions, 1)

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == f.sessions.CookieName() {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	sessionID, _, signed := strings.Cut(cookie.Value, ".")
	require.True(t, signed)
	_, tracked := f.repo.sessions[sessionID]
	assert.True(t, tracked)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	rr := f.login(t, "wrongpass")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "AUTH_REQUIRED")

	f.user.IsActive = false
	rr = f.login(t, "correctpass")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nope","password":"short"}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "VALIDATION_FAILED")
}

func TestMeReturnsCapabilities(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.tokens.Issue(f.user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(auth.TenantHeader, f.tenantID.String())
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Capabilities rbac.Capabilities `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	caps := body.Capabilities
	assert.Equal(t, rbac.RoleInstructor, caps.Role)
	assert.True(t, caps.IsInstructor)
	assert.False(t, caps.IsAdmin)
	assert.True(t, caps.CanWrite(rbac.ResourceStudents))
	assert.False(t, caps.CanDelete(rbac.ResourceStudents))
	assert.False(t, caps.CanRead(rbac.ResourcePayments))
}

func TestMeWithoutTenant(t *testing.T) {
	f := newFixture(t)
	token, _, err := f.tokens.Issue(f.user.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "TENANT_REQUIRED")
}

func TestTenantsUsesSessionCookie(t *testing.T) {
	f := newFixture(t)
	login := f.login(t, "correctpass")
	require.Equal(t, http.StatusOK, login.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/tenants", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []struct {
			TenantID uuid.UUID `json:"tenant_id"`
			Role     string    `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/auth/tenants", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	f := newFixture(t)
	login := f.login(t, "correctpass")
	require.Equal(t, http.StatusOK, login.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, f.repo.sessions)

	after := httptest.NewRequest(http.MethodGet, "/api/auth/tenants", nil)
	for _, c := range login.Result().Cookies() {
		after.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, after)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := &stubRepo{sessions: make(map[string]uuid.UUID)}
	svc := auth.NewService(repo, auth.NewTokenIssuer("jwt-secret", time.Hour))
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "not-an-email", "Owner", "longenough")
	require.Error(t, err)
	_, err = svc.CreateUser(ctx, "owner@academy.test", "Owner", "short")
	require.Error(t, err)

	user, err := svc.CreateUser(ctx, " owner@academy.test ", " Owner ", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "owner@academy.test", user.Email)
	assert.Equal(t, "Owner", user.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("longenough")))

	_, err = svc.CreateUser(ctx, "OWNER@academy.test", "Again", "longenough")
	assert.ErrorIs(t, err, auth.ErrEmailTaken)

	logged, err := svc.Authenticate(ctx, "owner@academy.test", "longenough")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
}

func (f fixture) withCookies(login *httptest.ResponseRecorder, req *http.Request) *http.Request {
	for _, c := range login.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestCookieSessionMustNameTenant(t *testing.T) {
	f := newFixture(t)
	login := f.login(t, "correctpass")
	require.Equal(t, http.StatusOK, login.Code)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.withCookies(login, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "TENANT_REQUIRED")

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.withCookies(login, httptest.NewRequest(http.MethodGet, "/api/auth/me?tenant_id="+f.tenantID.String(), nil)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var me struct {
		TenantID  uuid.UUID `json:"tenant_id"`
		CSRFToken string    `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, f.tenantID, me.TenantID)
	assert.NotEmpty(t, me.CSRFToken)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set(auth.TenantHeader, f.pendingTenantID.String())
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.withCookies(login, req))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "TENANT_ACCESS_DENIED")

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.withCookies(login, httptest.NewRequest(http.MethodPut, "/api/auth/tenant", strings.NewReader(`{"tenant_id":"`+f.tenantID.String()+`"}`))))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSessionStoreOutageIsInternalError(t *testing.T) {
	f := newFixture(t)
	login := f.login(t, "correctpass")
	require.Equal(t, http.StatusOK, login.Code)
	f.redis.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set(auth.TenantHeader, f.tenantID.String())
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.withCookies(login, req))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
	assert.Empty(t, rr.Result().Cookies())

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, f.withCookies(login, httptest.NewRequest(http.MethodGet, "/api/auth/tenants", nil)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "INTERNAL_ERROR")
}
