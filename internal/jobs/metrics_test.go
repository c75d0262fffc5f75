package jobmetrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRunRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()
	boom := errors.New("boom")
	poison := fmt.Errorf("decode: %w", asynq.SkipRetry)

	assert.NoError(t, m.Track(ctx, "audit:record").End(nil))
	assert.ErrorIs(t, m.Track(ctx, "audit:record").End(boom), boom)
	assert.ErrorIs(t, m.Track(ctx, "audit:record").End(poison), asynq.SkipRetry)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("audit:record", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("audit:record", StatusFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("audit:record", StatusDropped)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.failures.WithLabelValues("audit:record")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.retries.WithLabelValues("audit:record")))
}

func TestAddAnomalies(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddAnomalies("t-1", 2)
	m.AddAnomalies("", 1)
	m.AddAnomalies("t-1", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.anomalies.WithLabelValues("t-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.anomalies.WithLabelValues("unknown")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NoError(t, m.Track(context.Background(), "x").End(nil))
	m.AddAnomalies("t", 1)
}
