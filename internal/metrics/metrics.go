package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Requests         prometheus.Counter
	RequestFailures  prometheus.Counter
	PromptTokens     prometheus.Counter
	CompletionTokens prometheus.Counter
	CostUSD          prometheus.Counter
	RequestSeconds   prometheus.Histogram
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			Requests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatlab",
				Name:      "requests_total",
				Help:      "Total completion requests sent to the provider",
			}),
			RequestFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatlab",
				Name:      "request_failures_total",
				Help:      "Total completion requests that returned an error",
			}),
			PromptTokens: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatlab",
				Name:      "prompt_tokens_total",
				Help:      "Total prompt tokens billed",
			}),
			CompletionTokens: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatlab",
				Name:      "completion_tokens_total",
				Help:      "Total completion tokens billed",
			}),
			CostUSD: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "chatlab",
				Name:      "cost_usd_total",
				Help:      "Total estimated spend in USD",
			}),
			RequestSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "chatlab",
				Name:      "request_seconds",
				Help:      "Completion request wall-clock duration",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
			}),
		}
		prometheus.MustRegister(
			global.Requests,
			global.RequestFailures,
			global.PromptTokens,
			global.CompletionTokens,
			global.CostUSD,
			global.RequestSeconds,
		)
	})
	return global
}
