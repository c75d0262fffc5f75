package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lehine87/educanvas/internal/app"
	"github.com/lehine87/educanvas/internal/audit"
	audithttp "github.com/lehine87/educanvas/internal/audit/http"
	"github.com/lehine87/educanvas/internal/attendance"
	"github.com/lehine87/educanvas/internal/auth"
	"github.com/lehine87/educanvas/internal/classes"
	"github.com/lehine87/educanvas/internal/instructors"
	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/internal/observability"
	"github.com/lehine87/educanvas/internal/rbac"
	"github.com/lehine87/educanvas/internal/shared"
	"github.com/lehine87/educanvas/internal/students"
	"github.com/lehine87/educanvas/jobs"
)

const shutdownGrace = 10 * time.Second

func main() {
	app.Main("educanvas", serve)
}

func serve(ctx context.Context, rt *app.Runtime) error {
	cfg, logger := rt.Config, rt.Logger

	jobClient := asynq.NewClient(rt.RedisOpt())
	rt.OnClose(jobClient.Close)
	inspector := asynq.NewInspector(rt.RedisOpt())
	rt.OnClose(inspector.Close)

	sessions := shared.NewSessionManager(rt.Redis, "educanvas_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	metrics := observability.NewMetrics()

	membersRepo := members.NewRepository(rt.DB)
	membersCache := members.NewCache(membersRepo, rt.Redis, cfg.MembershipCacheTTL, logger)
	membersService := members.NewService(membersRepo, membersCache)
	resolver := auth.NewResolver(tokens, membersCache, logger)

	auditStore := audit.NewStore(rt.DB)
	var auditQueue audit.Queue
	if cfg.AuditAsync {
		auditQueue = jobs.NewAuditQueue(jobClient)
	}
	guard := rbac.Middleware{
		Resolver: resolver,
		Recorder: audit.NewRecorder(auditStore, auditQueue),
		Observer: metrics,
		Logger:   logger,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessions,
		CSRFManager:        csrf,
		AuthHandler:        auth.NewHandler(logger, auth.NewService(auth.NewRepository(rt.DB), tokens), resolver, guard, membersService, sessions, csrf),
		MembersHandler:     members.NewHandler(logger, membersService, guard, resolver),
		StudentsHandler:    students.NewHandler(logger, students.NewService(students.NewRepository(rt.DB)), guard),
		ClassesHandler:     classes.NewHandler(logger, classes.NewService(classes.NewRepository(rt.DB), membersCache), guard),
		InstructorsHandler: instructors.NewHandler(logger, instructors.NewService(instructors.NewRepository(rt.DB), membersCache), guard),
		AttendanceHandler:  attendance.NewHandler(logger, attendance.NewService(attendance.NewRepository(rt.DB)), guard),
		AuditHandler:       audithttp.NewHandler(logger, audit.NewService(auditStore), guard),
		PermissionsHandler: rbac.NewPermissionsHandler(guard),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.Bool("audit_async", cfg.AuditAsync))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
