package graph

import "time"

// Options configures an Engine. Use the With* functions with New rather than
// constructing Options directly; the zero value is not meant to be built by
// hand so that new fields can get safe defaults in New.
type Options struct {
	// MaxSteps bounds the number of node executions in a single Run/Resume
	// call before it fails with ErrMaxStepsExceeded. Zero means "use the
	// package default" (50, matching the spec's outer iteration cap).
	MaxSteps int

	// RunWallClockBudget, if non-zero, bounds total wall-clock time for a
	// single Run/Resume call via context.WithTimeout.
	RunWallClockBudget time.Duration

	Metrics *PrometheusMetrics
}

// Option mutates Options during New.
type Option func(*Options)

// WithMaxSteps overrides the default outer iteration cap.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithRunWallClockBudget bounds total wall-clock time for a run.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(o *Options) { o.RunWallClockBudget = d }
}

// WithMetrics attaches a PrometheusMetrics collector to the engine.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

const defaultMaxSteps = 50

func defaultOptions() Options {
	return Options{MaxSteps: defaultMaxSteps}
}
