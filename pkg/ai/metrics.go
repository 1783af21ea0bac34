package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rubric",
		Subsystem: "llm",
		Name:      "completion_duration_seconds",
		Help:      "Duration of LLM completion requests",
	}, []string{"provider", "model"})

	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rubric",
		Subsystem: "llm",
		Name:      "completion_failures_total",
		Help:      "Number of failed LLM completion requests",
	}, []string{"provider", "model"})

	completionTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rubric",
		Subsystem: "llm",
		Name:      "completion_tokens_total",
		Help:      "Tokens consumed by LLM completion requests",
	}, []string{"provider", "model", "direction"})
)

func recordUsage(provider, model string, input, output int64) {
	completionTokens.WithLabelValues(provider, model, "input").Add(float64(input))
	completionTokens.WithLabelValues(provider, model, "output").Add(float64(output))
}
