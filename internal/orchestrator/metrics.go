package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_turns_total",
		Help: "Orchestrator turns by outcome (ok, parse_error, timeout)",
	}, []string{"outcome"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auditor_turn_duration_seconds",
		Help:    "Wall time of one turn, model call plus tool execution",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_tool_calls_total",
		Help: "Tool calls by tool and error kind (ok on success)",
	}, []string{"tool", "outcome"})

	modelRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditor_model_retries_total",
		Help: "Model calls retried after a transient transport error",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auditor_runs_total",
		Help: "Finished runs by terminal state",
	}, []string{"state"})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "auditor_active_runs",
		Help: "Runs currently executing in this process",
	})
)
