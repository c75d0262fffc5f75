package app

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/lehine87/educanvas/internal/observability"
	"github.com/lehine87/educanvas/internal/platform/httpx"
	"github.com/lehine87/educanvas/internal/shared"
)

const (
	fallbackRequestTimeout = 30 * time.Second
	fallbackRatePerMinute  = 120
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
}

// MiddlewareStack returns the chain in order: request identity, session,
// panic recovery and timeout, security headers, rate limit, CSRF, metrics.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	production := cfg.Config.IsProduction()

	chain := []func(http.Handler) http.Handler{middleware.RealIP, middleware.RequestID}
	if cfg.SessionManager != nil {
		chain = append(chain, cfg.SessionManager.Middleware(logger))
	}
	chain = append(chain,
		middleware.Recoverer,
		middleware.Timeout(cfg.requestTimeout()),
		securityHeaders(production, logger),
		requestLimiter(cfg.ratePerMinute()),
		csrfMiddleware(cfg.CSRFManager, logger),
	)
	if cfg.Metrics != nil {
		chain = append(chain, cfg.Metrics.Middleware)
	}
	return chain
}

func (cfg MiddlewareConfig) requestTimeout() time.Duration {
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		return cfg.Config.AppRequestTimeout
	}
	return fallbackRequestTimeout
}

func (cfg MiddlewareConfig) ratePerMinute() int {
	if cfg.Config != nil && cfg.Config.RateLimitPerMinute > 0 {
		return cfg.Config.RateLimitPerMinute
	}
	return fallbackRatePerMinute
}

// securityHeaders applies the API's response headers. The API serves JSON
// only, so the content security policy denies everything.
func securityHeaders(production bool, logger *slog.Logger) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		STSSeconds:            31536000,
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				logger.Warn("secure headers blocked request", slog.Any("error", err))
				httpx.Error(w, httpx.CodeInternal, "internal error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLimiter(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httpx.Error(w, httpx.CodeRateLimited, "too many requests")
		}),
	)
}

// rateLimitKey buckets cookie sessions by user and everything else by IP.
func rateLimitKey(r *http.Request) (string, error) {
	if sess := shared.SessionFromContext(r.Context()); sess.Authenticated() {
		return "user:" + sess.UserID().String(), nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}

// csrfMiddleware checks the token on unsafe requests that rely on the
// session cookie. Bearer requests and anonymous sessions pass through.
func csrfMiddleware(manager *shared.CSRFManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if manager == nil || !unsafeMethod(r.Method) || hasBearer(r) || !sess.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if err := manager.Verify(sess, r.Header.Get(shared.CSRFHeader)); err != nil {
				logger.Warn("csrf validation failed", slog.String("path", r.URL.Path), slog.Any("error", err))
				httpx.Error(w, httpx.CodeCSRFInvalid, "missing or invalid csrf token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func hasBearer(r *http.Request) bool {
	scheme, _, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	return ok && strings.EqualFold(scheme, "bearer")
}
