package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/lehine87/educanvas/internal/platform/cache"
	"github.com/lehine87/educanvas/internal/platform/db"
)

// testModeEnv makes the binaries exit before touching Postgres or Redis.
const testModeEnv = "EDUCANVAS_TEST_MODE"

// InTestMode reports whether EDUCANVAS_TEST_MODE=1 is set.
func InTestMode() bool {
	return os.Getenv(testModeEnv) == "1"
}

// Runtime bundles the configuration and connections shared by the API
// server and the worker.
type Runtime struct {
	Config *Config
	Logger *slog.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client

	closers []func() error
}

// Boot loads configuration and opens Postgres and Redis. On error every
// connection opened so far is closed.
func Boot(ctx context.Context) (*Runtime, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt := &Runtime{Config: cfg, Logger: NewLogger(cfg)}

	rt.DB, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	rt.OnClose(func() error { rt.DB.Close(); return nil })

	rt.Redis, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.OnClose(rt.Redis.Close)
	return rt, nil
}

// RedisOpt returns the asynq connection settings for the configured Redis.
func (rt *Runtime) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: rt.Config.RedisAddr, Password: rt.Config.RedisPassword, DB: rt.Config.RedisDB}
}

// OnClose registers fn to run when the runtime shuts down.
func (rt *Runtime) OnClose(fn func() error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse registration order.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			rt.Logger.Warn("runtime close", slog.Any("error", err))
		}
	}
	rt.closers = nil
}

// Main boots a Runtime, runs fn until SIGINT or SIGTERM, and exits non-zero
// when either fails. In test mode it returns without connecting.
func Main(name string, fn func(ctx context.Context, rt *Runtime) error) {
	if InTestMode() {
		slog.Default().Info("test mode detected, skipping startup", slog.String("binary", name))
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := Boot(ctx)
	if err != nil {
		slog.Default().Error(name, slog.Any("error", err))
		os.Exit(1)
	}
	err = fn(ctx, rt)
	rt.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(name, slog.Any("error", err))
		os.Exit(1)
	}
}
