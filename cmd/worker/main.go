package main

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/lehine87/educanvas/internal/app"
	"github.com/lehine87/educanvas/internal/audit"
	jobmetrics "github.com/lehine87/educanvas/internal/jobs"
	"github.com/lehine87/educanvas/internal/members"
	"github.com/lehine87/educanvas/jobs"
)

// Cron schedules, UTC.
const (
	auditPruneSchedule    = "15 3 * * *"
	expirePendingSchedule = "0 * * * *"
)

func main() {
	app.Main("worker", work)
}

func work(ctx context.Context, rt *app.Runtime) error {
	cfg, logger := rt.Config, rt.Logger
	metrics := jobmetrics.NewMetrics(nil)

	auditStore := audit.NewStore(rt.DB)
	membersRepo := members.NewRepository(rt.DB)
	membersCache := members.NewCache(membersRepo, rt.Redis, cfg.MembershipCacheTTL, logger)

	record := jobs.NewAuditRecordJob(auditStore, logger, metrics)
	retention := &jobs.RetentionJob{
		Audit:   audit.NewService(auditStore),
		Members: members.NewService(membersRepo, membersCache),
		Logger:  logger,
		Metrics: metrics,
	}

	pruneTask, err := jobs.NewAuditPruneTask(cfg.AuditRetention)
	if err != nil {
		return fmt.Errorf("build audit prune task: %w", err)
	}
	expireTask, err := jobs.NewExpirePendingTask(cfg.PendingMembershipTTL)
	if err != nil {
		return fmt.Errorf("build expire pending task: %w", err)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   rt.RedisOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuditRecord, Handler: record.Handle},
			{Type: jobs.TaskAuditPrune, Handler: retention.HandleAuditPrune},
			{Type: jobs.TaskMembersExpirePending, Handler: retention.HandleExpirePending},
		},
		Cron: []jobs.CronRegistration{
			{Spec: auditPruneSchedule, Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: expirePendingSchedule, Task: expireTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}
	return worker.Run(ctx)
}
