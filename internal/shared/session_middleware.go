package shared

import (
	"context"
	"log/slog"
	"net/http"
)

type sessionKey struct{}

// ContextWithSession stores the session in ctx.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the request session, or nil outside the
// session middleware.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}

// committingWriter persists the session right before the first header
// write, which is the last point a Set-Cookie can still be sent.
type committingWriter struct {
	http.ResponseWriter
	ctx       context.Context
	sess      *Session
	manager   *SessionManager
	logger    *slog.Logger
	committed bool
}

func (w *committingWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
		w.logger.Error("commit session", slog.Any("error", err), slog.String("session_user", w.sess.UserID().String()))
	}
}

func (w *committingWriter) WriteHeader(statusCode int) {
	w.commit()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *committingWriter) Write(data []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(data)
}

func (w *committingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Middleware loads the session into the request context and commits it
// with the response. When Redis fails the request carries a session whose
// Err reports the failure.
func (sm *SessionManager) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sm.Load(r.Context(), r)
			if err != nil {
				logger.Error("load session", slog.Any("error", err))
				sess = sm.newSession()
				sess.loadErr = err
			}
			ctx := ContextWithSession(r.Context(), sess)
			cw := &committingWriter{ResponseWriter: w, ctx: ctx, sess: sess, manager: sm, logger: logger}
			next.ServeHTTP(cw, r.WithContext(ctx))
			cw.commit()
		})
	}
}
