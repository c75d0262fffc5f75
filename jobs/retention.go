package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/lehine87/educanvas/internal/jobs"
)

// AuditPruner deletes audit records older than a retention window.
type AuditPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// PendingExpirer inactivates pending memberships older than a TTL.
type PendingExpirer interface {
	ExpirePending(ctx context.Context, ttl time.Duration) (int, error)
}

// RetentionJob runs the periodic cleanup tasks.
type RetentionJob struct {
	Audit   AuditPruner
	Members PendingExpirer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// HandleAuditPrune processes TaskAuditPrune.
func (j *RetentionJob) HandleAuditPrune(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("audit prune: handler not configured")
	}
	return j.sweep(ctx, t, func(maxAge time.Duration) (int64, error) {
		return j.Audit.Prune(ctx, maxAge)
	})
}

// HandleExpirePending processes TaskMembersExpirePending.
func (j *RetentionJob) HandleExpirePending(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Members == nil {
		return errors.New("expire pending: handler not configured")
	}
	return j.sweep(ctx, t, func(maxAge time.Duration) (int64, error) {
		n, err := j.Members.ExpirePending(ctx, maxAge)
		return int64(n), err
	})
}

// sweep decodes the retention payload and runs one cleanup pass under
// the task's metrics.
func (j *RetentionJob) sweep(ctx context.Context, t *asynq.Task, pass func(time.Duration) (int64, error)) (err error) {
	run := j.Metrics.Track(ctx, t.Type())
	defer func() {
		err = run.End(err)
	}()

	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%s: decode payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if payload.MaxAge <= 0 {
		return fmt.Errorf("%s: max_age must be positive: %w", t.Type(), asynq.SkipRetry)
	}

	n, err := pass(payload.MaxAge)
	if err != nil {
		j.logger().Error(t.Type(), slog.Any("error", err))
		return err
	}
	j.logger().Info("retention sweep completed",
		slog.String("task", t.Type()),
		slog.Int64("affected", n),
		slog.Duration("max_age", payload.MaxAge),
	)
	return nil
}

func (j *RetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
