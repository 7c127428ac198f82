package llm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ModelPricing gives input/output token costs in USD per 1M tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// defaultModelPricing covers the models the openai, anthropic, and google
// adapters default to or commonly get configured with. Update as providers
// reprice.
var defaultModelPricing = map[string]ModelPricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"claude-sonnet-4-5-20250929": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"gemini-2.5-flash":           {InputPer1M: 0.30, OutputPer1M: 2.50},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
}

// CostTracker accumulates LLM spend for a single workflow run, keyed by
// model, and mirrors the total into a Prometheus counter so spend is also
// visible cluster-wide.
type CostTracker struct {
	runID   string
	pricing map[string]ModelPricing
	metric  *prometheus.CounterVec

	mu         sync.Mutex
	totalUSD   float64
	byModelUSD map[string]float64
	inputToks  int64
	outputToks int64
}

// NewCostTracker creates a tracker for one run. reg may be nil, in which case
// the Prometheus counter is omitted and only in-memory totals are kept.
func NewCostTracker(runID string, reg prometheus.Registerer) *CostTracker {
	t := &CostTracker{
		runID:      runID,
		pricing:    defaultModelPricing,
		byModelUSD: make(map[string]float64),
	}
	if reg != nil {
		t.metric = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "agentgraph_llm_cost_usd_total",
			Help: "Cumulative estimated LLM spend in USD.",
		}, []string{"model"})
	}
	return t
}

// RecordCall estimates the cost of one LLM invocation and adds it to the
// running totals. An unrecognized model is tracked at zero cost rather than
// rejected, since pricing tables lag new model releases.
func (t *CostTracker) RecordCall(model string, inputTokens, outputTokens int) float64 {
	pricing := t.pricing[model]
	cost := (float64(inputTokens)*pricing.InputPer1M + float64(outputTokens)*pricing.OutputPer1M) / 1_000_000

	t.mu.Lock()
	t.totalUSD += cost
	t.byModelUSD[model] += cost
	t.inputToks += int64(inputTokens)
	t.outputToks += int64(outputTokens)
	t.mu.Unlock()

	if t.metric != nil {
		t.metric.WithLabelValues(model).Add(cost)
	}
	return cost
}

// TotalUSD returns cumulative estimated spend across all recorded calls.
func (t *CostTracker) TotalUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalUSD
}

// ByModel returns a copy of the per-model cost breakdown.
func (t *CostTracker) ByModel() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.byModelUSD))
	for k, v := range t.byModelUSD {
		out[k] = v
	}
	return out
}

// TokenTotals returns cumulative input and output token counts.
func (t *CostTracker) TokenTotals() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputToks, t.outputToks
}
