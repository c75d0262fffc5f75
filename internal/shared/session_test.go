package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*miniredis.Miniredis, *SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewSessionManager(client, "educanvas_session", "secret", time.Hour, false)
}

func reload(t *testing.T, sm *SessionManager, cookie *http.Cookie) *Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestSessionRoundTrip(t *testing.T) {
	mr, sm := newTestManager(t)
	ctx := context.Background()
	userID := uuid.New()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	sess.SignIn(userID)

	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.NotEqual(t, sess.ID, cookies[0].Value)
	assert.True(t, mr.Exists(sessionKeyPrefix+sess.ID))

	loaded := reload(t, sm, cookies[0])
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, userID, loaded.UserID())
	assert.NoError(t, loaded.Err())
}

func TestAnonymousSessionNotPersisted(t *testing.T) {
	mr, sm := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.dirty = true
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	assert.Empty(t, rr.Result().Cookies())
	assert.Empty(t, mr.Keys())
}

func TestForgedCookiesYieldFreshSession(t *testing.T) {
	mr, sm := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn(uuid.New())
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	require.True(t, mr.Exists(sessionKeyPrefix+sess.ID))

	for _, value := range []string{sess.ID, sess.ID + ".forged", "." + sm.mac("")} {
		loaded := reload(t, sm, &http.Cookie{Name: sm.CookieName(), Value: value})
		assert.NotEqual(t, sess.ID, loaded.ID, value)
		assert.False(t, loaded.Authenticated(), value)
	}
}

func TestIdleSessionIsRefreshed(t *testing.T) {
	mr, sm := newTestManager(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	sm.now = func() time.Time { return now }

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn(uuid.New())
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	cookie := rr.Result().Cookies()[0]

	now = now.Add(10 * time.Minute)
	rr = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, reload(t, sm, cookie)))
	assert.Empty(t, rr.Result().Cookies())

	now = now.Add(10 * time.Minute)
	mr.FastForward(20 * time.Minute)
	rr = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, reload(t, sm, cookie)))
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, time.Hour, mr.TTL(sessionKeyPrefix+sess.ID))
}

func TestDestroyAndRenew(t *testing.T) {
	mr, sm := newTestManager(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SignIn(uuid.New())
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	oldID := sess.ID

	require.NoError(t, sm.Renew(ctx, sess))
	assert.NotEqual(t, oldID, sess.ID)
	assert.False(t, mr.Exists(sessionKeyPrefix+oldID))

	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	sm.Destroy(sess)
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rr, sess))
	assert.False(t, mr.Exists(sessionKeyPrefix+sess.ID))
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}

func TestMiddlewareCommitsBeforeBody(t *testing.T) {
	mr, sm := newTestManager(t)
	userID := uuid.New()
	handler := sm.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SessionFromContext(r.Context()).SignIn(userID)
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Len(t, rr.Result().Cookies(), 1)
	assert.Len(t, mr.Keys(), 1)
	assert.Equal(t, userID, reload(t, sm, rr.Result().Cookies()[0]).UserID())
}

func TestMiddlewareFlagsStoreOutage(t *testing.T) {
	mr, sm := newTestManager(t)
	sess := &Session{ID: "s1", isNew: true}
	sess.SignIn(uuid.New())
	rr := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rr, sess))
	cookie := rr.Result().Cookies()[0]
	mr.Close()

	var seen *Session
	handler := sm.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.NotNil(t, seen)
	assert.Error(t, seen.Err())
	assert.False(t, seen.Authenticated())
	assert.Empty(t, rr.Result().Cookies())
}

func TestCSRFTokenVerification(t *testing.T) {
	_, sm := newTestManager(t)
	csrf := NewCSRFManager("csrfsecret")
	ctx := context.Background()
	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	_, err = csrf.Token(sess)
	assert.ErrorIs(t, err, ErrCSRFTokenMissing)

	sess.SignIn(uuid.New())
	token, err := csrf.Token(sess)
	require.NoError(t, err)
	again, err := csrf.Token(sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	assert.NoError(t, csrf.Verify(sess, token))
	assert.ErrorIs(t, csrf.Verify(sess, ""), ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.Verify(sess, "other"), ErrCSRFTokenMismatch)
	assert.ErrorIs(t, csrf.Verify(nil, token), ErrCSRFTokenMissing)

	require.NoError(t, sm.Renew(ctx, sess))
	assert.ErrorIs(t, csrf.Verify(sess, token), ErrCSRFTokenMismatch)
}
