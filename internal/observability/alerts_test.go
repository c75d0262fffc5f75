package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/lehine87/educanvas/internal/jobs"
)

type ruleGroups struct {
	Groups []struct {
		Name  string `yaml:"name"`
		Rules []struct {
			Alert       string            `yaml:"alert"`
			Expr        string            `yaml:"expr"`
			For         string            `yaml:"for"`
			Labels      map[string]string `yaml:"labels"`
			Annotations map[string]string `yaml:"annotations"`
		} `yaml:"rules"`
	} `yaml:"groups"`
}

var metricName = regexp.MustCompile(`educanvas_[a-z_]+`)

// exportedNames touches every vector once so the registry reports it, then
// returns the family names a scrape would contain.
func exportedNames(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	jm := jobmetrics.NewMetrics(m.Registerer())
	ctx := context.Background()
	m.ObserveDecision("ALLOWED")
	m.requestsTotal.WithLabelValues("/", "GET", "200").Inc()
	m.requestDuration.WithLabelValues("/").Observe(0)
	_ = jm.Track(ctx, "audit:record").End(errors.New("x"))
	_ = jm.Track(ctx, "audit:record").End(fmt.Errorf("y: %w", asynq.SkipRetry))
	jm.AddAnomalies("t", 1)

	families, err := m.registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	return names
}

func TestAccessAlertRules(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "access.yml"))
	require.NoError(t, err)
	var file ruleGroups
	require.NoError(t, yaml.Unmarshal(data, &file))
	require.Len(t, file.Groups, 1)
	require.Equal(t, "access", file.Groups[0].Name)

	severities := map[string]string{
		"GuardInternalErrors": "critical",
		"PermissionDenials":   "warning",
		"AuditJobFailures":    "warning",
		"AuditRecordsDropped": "warning",
	}
	exported := exportedNames(t)

	rules := file.Groups[0].Rules
	require.Len(t, rules, len(severities))
	for _, rule := range rules {
		t.Run(rule.Alert, func(t *testing.T) {
			want, ok := severities[rule.Alert]
			require.True(t, ok, "unexpected rule")
			assert.Equal(t, want, rule.Labels["severity"])
			assert.NotEmpty(t, rule.Annotations["summary"])
			assert.NotEmpty(t, rule.Annotations["description"])

			hold, err := time.ParseDuration(rule.For)
			require.NoError(t, err)
			assert.Positive(t, hold)

			referenced := metricName.FindAllString(rule.Expr, -1)
			require.NotEmpty(t, referenced)
			for _, name := range referenced {
				assert.True(t, exported[name], "expression references unexported metric %s", name)
			}
		})
	}
}
