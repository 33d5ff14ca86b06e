package service

import "github.com/prometheus/client_golang/prometheus"

// Suggestion outcomes.
const (
	outcomeAI          = "ai"
	outcomeFallback    = "fallback"
	outcomeUnavailable = "unavailable"
	outcomeMalformed   = "malformed"
	outcomeEmpty       = "empty"
)

var SuggestionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "task_suggestions_total",
		Help: "Order suggestions served, by outcome",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(SuggestionsTotal)
}
