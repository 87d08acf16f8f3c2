package chat

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"chatlab/internal/metrics"
	"chatlab/internal/pricing"
)

// Usage accumulates session-scoped counters: tokens, exact decimal cost,
// request count and wall-clock time. Cost never goes through binary
// floating point.
type Usage struct {
	mu sync.RWMutex

	fallback pricing.Price
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	promptTokens     int64
	completionTokens int64
	cost             decimal.Decimal
	requests         int64
	elapsed          time.Duration
	lastModel        string
}

func NewUsage(fallback pricing.Price, logger zerolog.Logger) *Usage {
	return &Usage{
		fallback: fallback,
		logger:   logger,
		metrics:  metrics.Global(),
		cost:     decimal.Zero,
	}
}

// Record adds one request's usage and returns the cost of this request.
// The resolved model name is what the provider reported it actually
// served, which may carry a version suffix.
func (u *Usage) Record(promptTokens, completionTokens int, model string, elapsed time.Duration) decimal.Decimal {
	price := pricing.Resolve(model, u.fallback)
	cost := price.Cost(promptTokens, completionTokens)

	u.mu.Lock()
	u.promptTokens += int64(promptTokens)
	u.completionTokens += int64(completionTokens)
	u.cost = u.cost.Add(cost)
	u.requests++
	u.elapsed += elapsed
	u.lastModel = model
	totalCost := u.cost
	avg := u.avgLatencyLocked()
	u.mu.Unlock()

	u.metrics.Requests.Inc()
	u.metrics.PromptTokens.Add(float64(promptTokens))
	u.metrics.CompletionTokens.Add(float64(completionTokens))
	costF, _ := cost.Float64()
	u.metrics.CostUSD.Add(costF)
	u.metrics.RequestSeconds.Observe(elapsed.Seconds())

	u.logger.Info().
		Str("model", model).
		Int("prompt_tokens", promptTokens).
		Int("completion_tokens", completionTokens).
		Float64("elapsed_s", elapsed.Seconds()).
		Str("cost_usd", cost.String()).
		Str("total_cost_usd", totalCost.String()).
		Dur("avg_latency", avg).
		Msg("request usage")

	return cost
}

func (u *Usage) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.promptTokens = 0
	u.completionTokens = 0
	u.cost = decimal.Zero
	u.requests = 0
	u.elapsed = 0
	u.lastModel = ""
}

// Snapshot is a point-in-time read of the session counters.
type Snapshot struct {
	PromptTokens     int64
	CompletionTokens int64
	Cost             decimal.Decimal
	Requests         int64
	Elapsed          time.Duration
	LastModel        string
	AvgLatency       time.Duration
}

func (u *Usage) Snapshot() Snapshot {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return Snapshot{
		PromptTokens:     u.promptTokens,
		CompletionTokens: u.completionTokens,
		Cost:             u.cost,
		Requests:         u.requests,
		Elapsed:          u.elapsed,
		LastModel:        u.lastModel,
		AvgLatency:       u.avgLatencyLocked(),
	}
}

func (u *Usage) avgLatencyLocked() time.Duration {
	if u.requests == 0 {
		return 0
	}
	return u.elapsed / time.Duration(u.requests)
}
