package audit

import (
	"context"
	"errors"

	"github.com/lehine87/educanvas/internal/rbac"
)

// Writer persists a record synchronously.
type Writer interface {
	Insert(ctx context.Context, rec Record) error
}

// Queue hands a record to a background worker.
type Queue interface {
	EnqueueAuditRecord(ctx context.Context, rec Record) error
}

// Recorder turns guard access events into audit records. When a queue is
// set records are enqueued, otherwise they are written inline.
type Recorder struct {
	writer Writer
	queue  Queue
}

// NewRecorder builds a Recorder. queue may be nil.
func NewRecorder(writer Writer, queue Queue) *Recorder {
	return &Recorder{writer: writer, queue: queue}
}

// RecordAccess implements rbac.AccessRecorder.
func (r *Recorder) RecordAccess(ctx context.Context, event rbac.AccessEvent) error {
	rec := NewRecord(event)
	if r.queue != nil {
		return r.queue.EnqueueAuditRecord(ctx, rec)
	}
	if r.writer == nil {
		return errors.New("audit: recorder has no writer")
	}
	return r.writer.Insert(ctx, rec)
}

// NewRecord classifies an access event into a record.
func NewRecord(event rbac.AccessEvent) Record {
	risk, anomalous := Classify(event)
	action, resource := describe(event)
	return Record{
		TenantID:  event.Identity.TenantID,
		UserID:    event.Identity.UserID,
		Role:      string(event.Identity.Role),
		Method:    event.Method,
		Route:     event.Route,
		Action:    action,
		Resource:  resource,
		Risk:      risk,
		Anomalous: anomalous,
		CreatedAt: event.At.UTC(),
	}
}
