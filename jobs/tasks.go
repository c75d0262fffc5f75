package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lehine87/educanvas/internal/audit"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries access records written off the request path.
	QueueAudit = "audit"

	// TaskAuditRecord persists one access record.
	TaskAuditRecord = "audit:record"
	// TaskAuditPrune deletes access records past retention.
	TaskAuditPrune = "audit:prune"
	// TaskMembersExpirePending inactivates stale access requests.
	TaskMembersExpirePending = "members:expire-pending"
)

// RetentionPayload carries the age limit for cleanup tasks.
type RetentionPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewAuditRecordTask wraps a record for the audit queue.
func NewAuditRecordTask(rec audit.Record) (*asynq.Task, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, body, asynq.Queue(QueueAudit), asynq.MaxRetry(5)), nil
}

// NewAuditPruneTask constructs the retention cleanup task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	return newRetentionTask(TaskAuditPrune, retention)
}

// NewExpirePendingTask constructs the pending membership expiry task.
func NewExpirePendingTask(ttl time.Duration) (*asynq.Task, error) {
	return newRetentionTask(TaskMembersExpirePending, ttl)
}

func newRetentionTask(typ string, maxAge time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(RetentionPayload{MaxAge: maxAge})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, body, asynq.Queue(QueueDefault)), nil
}
