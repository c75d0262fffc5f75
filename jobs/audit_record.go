package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lehine87/educanvas/internal/audit"
	jobmetrics "github.com/lehine87/educanvas/internal/jobs"
)

// AuditRecordJob writes queued access records.
type AuditRecordJob struct {
	Writer  audit.Writer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditRecordJob initialises the audit record handler.
func NewAuditRecordJob(writer audit.Writer, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	return &AuditRecordJob{Writer: writer, Logger: logger, Metrics: metrics}
}

// Handle decodes and persists one record. Malformed payloads are dropped.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Writer == nil {
		return errors.New("audit record: handler not configured")
	}
	run := j.Metrics.Track(ctx, TaskAuditRecord)
	defer func() {
		err = run.End(err)
	}()

	var rec audit.Record
	if err := json.Unmarshal(t.Payload(), &rec); err != nil {
		return fmt.Errorf("audit record: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := j.Writer.Insert(ctx, rec); err != nil {
		j.logger().Error("audit record", slog.Any("error", err), slog.String("tenant_id", rec.TenantID.String()))
		return err
	}
	if rec.Anomalous {
		j.logger().Warn("anomalous access recorded",
			slog.String("tenant_id", rec.TenantID.String()),
			slog.String("user_id", rec.UserID.String()),
			slog.String("route", rec.Route),
			slog.String("risk", string(rec.Risk)),
		)
		j.Metrics.AddAnomalies(rec.TenantID.String(), 1)
	}
	return nil
}

func (j *AuditRecordJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// Enqueuer is the subset of asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AuditQueue implements audit.Queue on top of asynq.
type AuditQueue struct {
	client Enqueuer
}

// NewAuditQueue wraps an asynq client.
func NewAuditQueue(client Enqueuer) *AuditQueue {
	return &AuditQueue{client: client}
}

// EnqueueAuditRecord submits rec to the audit queue.
func (q *AuditQueue) EnqueueAuditRecord(ctx context.Context, rec audit.Record) error {
	task, err := NewAuditRecordTask(rec)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("audit record: enqueue: %w", err)
	}
	return nil
}
