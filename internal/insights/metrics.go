package insights

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	insightRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "adpulse",
		Subsystem: "insights",
		Name:      "runs_total",
		Help:      "Per-org insight generation runs by outcome.",
	}, []string{"outcome"})

	insightsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "adpulse",
		Subsystem: "insights",
		Name:      "generated_total",
		Help:      "Insights persisted across all orgs.",
	})
)
