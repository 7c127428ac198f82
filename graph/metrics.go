package graph

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics exposes run-level execution metrics, namespaced
// "agentgraph_". Attach via WithMetrics; a nil *PrometheusMetrics is safe to
// use (all methods no-op), so callers that don't care about metrics can pass
// nothing to New.
type PrometheusMetrics struct {
	inflightThreads prometheus.Gauge
	stepLatency     *prometheus.HistogramVec
	interrupts      *prometheus.CounterVec
	runawayLoops    prometheus.Counter
}

// NewPrometheusMetrics registers the collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test runs.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		inflightThreads: factory.NewGauge(prometheus.GaugeOpts{
			Name: "agentgraph_inflight_threads",
			Help: "Number of threads currently executing a node.",
		}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agentgraph_step_latency_ms",
			Help:    "Node execution duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"node_id", "status"}),
		interrupts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "agentgraph_interrupts_total",
			Help: "Number of times a thread suspended at a wait node.",
		}, []string{"node_id"}),
		runawayLoops: factory.NewCounter(prometheus.CounterOpts{
			Name: "agentgraph_runaway_loops_total",
			Help: "Number of runs terminated by the outer iteration cap.",
		}),
	}
}

func (m *PrometheusMetrics) observeStep(nodeID, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepLatency.WithLabelValues(nodeID, status).Observe(float64(d.Milliseconds()))
}

func (m *PrometheusMetrics) incInflight(delta float64) {
	if m == nil {
		return
	}
	m.inflightThreads.Add(delta)
}

func (m *PrometheusMetrics) incInterrupt(nodeID string) {
	if m == nil {
		return
	}
	m.interrupts.WithLabelValues(nodeID).Inc()
}

func (m *PrometheusMetrics) incRunawayLoop() {
	if m == nil {
		return
	}
	m.runawayLoops.Inc()
}
