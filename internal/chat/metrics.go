package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpulse",
		Subsystem: "chat",
		Name:      "turns_total",
		Help:      "Completed conversation turns by outcome.",
	}, []string{"outcome"})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpulse",
		Subsystem: "chat",
		Name:      "tool_calls_total",
		Help:      "Tool executions by tool name and outcome.",
	}, []string{"tool", "outcome"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpulse",
		Subsystem: "chat",
		Name:      "fallbacks_total",
		Help:      "Fallback stage activations after an empty model answer.",
	}, []string{"stage"})
)
