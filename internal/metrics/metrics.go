// Package metrics holds the Prometheus collectors for the debt engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripsplit"

// Registry is the registry every collector below is registered with.
var Registry = prometheus.NewRegistry()

var (
	// PassesStarted counts recalculation passes begun.
	PassesStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "calculator",
		Name:      "passes_started_total",
		Help:      "Recalculation passes started.",
	})

	// PassesApplied counts passes whose result became the live state.
	PassesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "calculator",
		Name:      "passes_applied_total",
		Help:      "Recalculation passes whose results were applied.",
	})

	// PassesStale counts passes discarded because a newer pass was started.
	PassesStale = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "calculator",
		Name:      "passes_stale_total",
		Help:      "Recalculation passes discarded as superseded.",
	})

	// PassDuration observes pass latency including store reads and conversions.
	PassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "calculator",
		Name:      "pass_duration_seconds",
		Help:      "Duration of recalculation passes.",
		Buckets:   prometheus.DefBuckets,
	})

	// ExpensesSkipped counts expenses left out of a pass, by reason.
	ExpensesSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "calculator",
		Name:      "expenses_skipped_total",
		Help:      "Expenses excluded from a pass.",
	}, []string{"reason"})

	// Settlements counts settle-up attempts, by outcome.
	Settlements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "settle_ups_total",
		Help:      "Settle-up attempts.",
	}, []string{"outcome"})

	// SettledDebts counts debt records written to history.
	SettledDebts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "settlement",
		Name:      "settled_debts_total",
		Help:      "Debt records moved to history.",
	})

	// ActiveSessions reports open trip sessions.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "session",
		Name:      "active",
		Help:      "Open trip sessions.",
	})
)

// Settlement outcomes.
const (
	OutcomeSettled = "settled"
	OutcomeEmpty   = "empty"
	OutcomeFailed  = "failed"
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		PassesStarted,
		PassesApplied,
		PassesStale,
		PassDuration,
		ExpensesSkipped,
		Settlements,
		SettledDebts,
		ActiveSessions,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
