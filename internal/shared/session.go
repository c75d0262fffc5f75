package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "educanvas:session:"

// SessionManager keeps cookie sessions in Redis. The cookie carries the
// session ID plus an HMAC, so forged IDs are rejected before any lookup.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
	now        func() time.Time
}

// Session is the server-side state behind a cookie. It never carries a
// tenant; every tenant-scoped request names its tenant explicitly.
type Session struct {
	ID          string
	userID      uuid.UUID
	refreshedAt time.Time
	isNew       bool
	dirty       bool
	destroyed   bool
	loadErr     error
}

type sessionRecord struct {
	UserID      uuid.UUID `json:"user_id"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
		now:        time.Now,
	}
}

// Load returns the session named by the request cookie. Missing, forged or
// expired cookies yield a fresh anonymous session that is only stored once
// a user signs in. Sessions idle for more than a quarter of the TTL are
// marked for refresh so active users keep a sliding expiry.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		return sm.newSession(), nil
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return sm.newSession(), nil
	}

	payload, err := sm.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sm.newSession(), nil
		}
		return nil, err
	}
	var rec sessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	sess := &Session{ID: id, userID: rec.UserID, refreshedAt: rec.RefreshedAt}
	if sm.now().Sub(rec.RefreshedAt) > sm.ttl/4 {
		sess.dirty = true
	}
	return sess, nil
}

// Commit persists a dirty session and writes the cookie, or clears both when
// the session was destroyed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil || sess.loadErr != nil {
		return nil
	}
	if sess.destroyed {
		if err := sm.client.Del(ctx, sessionKeyPrefix+sess.ID).Err(); err != nil {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}
	if !sess.dirty || sess.userID == uuid.Nil {
		return nil
	}

	sess.refreshedAt = sm.now().UTC()
	data, err := json.Marshal(sessionRecord{UserID: sess.userID, RefreshedAt: sess.refreshedAt})
	if err != nil {
		return err
	}
	if err := sm.client.Set(ctx, sessionKeyPrefix+sess.ID, data, sm.ttl).Err(); err != nil {
		return err
	}
	sess.dirty = false
	sess.isNew = false
	http.SetCookie(w, sm.cookie(sm.sign(sess.ID), int(sm.ttl/time.Second)))
	return nil
}

// Destroy marks the session for deletion at commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// Renew moves the session to a new ID. Call it on sign-in to prevent
// fixation.
func (sm *SessionManager) Renew(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if !sess.isNew {
		if err := sm.client.Del(ctx, sessionKeyPrefix+sess.ID).Err(); err != nil {
			return err
		}
	}
	sess.ID = rand.Text()
	sess.dirty = true
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// SignIn binds the session to a user.
func (s *Session) SignIn(userID uuid.UUID) {
	s.userID = userID
	s.dirty = true
}

// UserID returns the signed-in user, or uuid.Nil.
func (s *Session) UserID() uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.userID
}

// Err returns the backend error hit while loading the session, if any.
// Such a session is unusable: it is neither authenticated nor committed.
func (s *Session) Err() error {
	if s == nil {
		return nil
	}
	return s.loadErr
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return s.UserID() != uuid.Nil
}

func (sm *SessionManager) newSession() *Session {
	return &Session{ID: rand.Text(), isNew: true}
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (sm *SessionManager) mac(id string) string {
	h := hmac.New(sha256.New, sm.secret)
	_, _ = h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + sm.mac(id)
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(sig), []byte(sm.mac(id)))
}
