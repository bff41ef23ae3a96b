// Prometheus instrumentation for provider calls. Labels are bounded:
// provider ids come from the static registry and operations from a fixed
// set (generate, generate_text, respond, rich_translate, summarize).

package ai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// providerCalls counts upstream calls by provider, operation, and outcome.
	providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_provider_calls_total",
			Help: "Total number of AI provider calls.",
		},
		[]string{"provider", "operation", "outcome"},
	)

	// providerLat records upstream call duration in seconds. Model calls are
	// orders of magnitude slower than HTTP handling, hence the wide buckets.
	providerLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_provider_call_duration_seconds",
			Help:    "Duration of AI provider calls in seconds.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider", "operation"},
	)

	// providerTokens counts upstream token usage as reported by the provider.
	providerTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_provider_tokens_total",
			Help: "Total tokens consumed by AI provider calls.",
		},
		[]string{"provider", "direction"},
	)
)

func init() {
	prometheus.MustRegister(providerCalls, providerLat, providerTokens)
}

// observeCall records one provider round trip. Call with the operation name
// and the error (nil for success); usage may be nil when the backend does
// not report it.
func observeCall(provider, operation string, start time.Time, err error, usage *Usage) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerCalls.WithLabelValues(provider, operation, outcome).Inc()
	providerLat.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
	if usage != nil {
		providerTokens.WithLabelValues(provider, "prompt").Add(float64(usage.PromptTokens))
		providerTokens.WithLabelValues(provider, "completion").Add(float64(usage.CompletionTokens))
	}
}
