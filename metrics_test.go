// FILE: lixenwraith/logpipe/metrics_test.go
package logpipe

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gather collects the metric families of c keyed by name
func gather(t *testing.T, c prometheus.Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}
	return byName
}

// TestCollector verifies that engine stats are exported on scrape
func TestCollector(t *testing.T) {
	e, _ := createTestEngine(t, consoleConfig("{class} {message}"))
	for i := 0; i < 3; i++ {
		e.Log(LevelInfo, "", "entry {}", i)
	}
	e.metrics.Rollovers.Add(2)
	e.metrics.Lost.Add(7)

	families := gather(t, NewCollector(e, "app"))

	counters := map[string]float64{
		"app_entries_submitted_total": 3,
		"app_writes_total":            3,
		"app_writer_errors_total":     0,
		"app_entries_dropped_total":   0,
		"app_stack_walks_total":       3,
		"app_entries_lost_total":      7,
		"app_rollovers_total":         2,
		"app_reconnects_total":        0,
		"app_diagnostics_total":       0,
	}
	for name, want := range counters {
		mf, ok := families[name]
		require.True(t, ok, "missing metric %s", name)
		assert.Equal(t, dto.MetricType_COUNTER, mf.GetType(), name)
		assert.Equal(t, want, mf.GetMetric()[0].GetCounter().GetValue(), name)
	}

	depth, ok := families["app_queue_depth"]
	require.True(t, ok)
	assert.Equal(t, dto.MetricType_GAUGE, depth.GetType())
	assert.Equal(t, float64(0), depth.GetMetric()[0].GetGauge().GetValue())
}

// TestCollectorDefaultNamespace verifies the default metric prefix
func TestCollectorDefaultNamespace(t *testing.T) {
	e, _ := createTestEngine(t, consoleConfig("{message}"))
	families := gather(t, NewCollector(e, ""))
	assert.Contains(t, families, "logpipe_entries_submitted_total")
	assert.Len(t, families, 10)
}
