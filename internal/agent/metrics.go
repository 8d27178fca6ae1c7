package agent

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the prometheus histograms the runtime exposes. Grounded on
// the teacher's internal/guardian.NewMetrics pattern of a single
// Registerer-backed constructor rather than relying on the global default
// registry.
type Metrics struct {
	TurnDuration prometheus.Histogram
	ToolDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns the runtime's histograms under reg.
// Pass a fresh prometheus.Registry per process to avoid collisions with
// the default global registry when more than one Runtime runs in the same
// binary (e.g. the test suite).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ryvos_agent_turn_duration_seconds",
			Help:    "Duration of a single completion turn, stream start to stream close.",
			Buckets: prometheus.DefBuckets,
		}),
		ToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ryvos_agent_tool_duration_seconds",
			Help:    "Duration of a single tool execution through the gate, labeled by tool name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	reg.MustRegister(m.TurnDuration, m.ToolDuration)
	return m
}
