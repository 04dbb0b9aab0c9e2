package metricskey

import (
	"sort"
	"strings"
	"testing"

	"github.com/effective-security/metrics"
	"github.com/stretchr/testify/assert"
)

func Test_MetricsSorted(t *testing.T) {
	names := make([]string, len(Metrics))
	for i, m := range Metrics {
		names[i] = m.Name
	}
	assert.True(t, sort.StringsAreSorted(names), "keep Metrics sorted by name: %v", names)
}

func Test_MetricsDefinitions(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Metrics {
		assert.NotEmpty(t, m.Name)
		assert.True(t, strings.HasPrefix(m.Help, m.Name+" provides "), m.Name)
		assert.NotEmpty(t, m.RequiredTags, m.Name)
		assert.False(t, seen[m.Name], "duplicate metric %s", m.Name)
		seen[m.Name] = true

		switch {
		case strings.HasPrefix(m.Name, "perf_"):
			assert.Equal(t, metrics.TypeSample, m.Type, m.Name)
		case strings.HasPrefix(m.Name, "stats_"):
			assert.Equal(t, metrics.TypeCounter, m.Type, m.Name)
		default:
			t.Errorf("unexpected metric prefix: %s", m.Name)
		}
	}
}

func Test_MetricsTags(t *testing.T) {
	assert.Equal(t, []string{"agent", "model"}, StatsLLMMessagesSent.RequiredTags)
	assert.Equal(t, []string{"server", "tool"}, PerfMCPToolCall.RequiredTags)
	assert.Equal(t, []string{"graph", "node"}, StatsGraphSteps.RequiredTags)
}
