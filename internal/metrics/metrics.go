// Package metrics exposes Prometheus instruments for the poll loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "penaltywatcher"
)

// Cycle outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeFetchError = "fetch_error"
	OutcomeError      = "error"
	OutcomeSkipped    = "skipped"
)

var (
	// CyclesTotal counts poll cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of poll cycles by outcome",
		},
		[]string{"outcome"},
	)

	// CycleDuration tracks how long one cycle takes, excluding the sleep.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle processing time in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 4, 6, 10},
		},
	)

	// AlertsSentTotal counts delivered alerts by classifier rule.
	AlertsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_sent_total",
			Help:      "Total number of alerts delivered by rule",
		},
		[]string{"rule"},
	)

	// FetchErrorsTotal counts failed livescores requests.
	FetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of failed livescores fetches",
		},
	)

	// ActiveMatches is the number of non-terminal matches in the last feed.
	ActiveMatches = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "active_matches",
			Help:      "Number of in-play matches in the last snapshot",
		},
	)

	// DedupKeys is the size of the notified key set.
	DedupKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "keys",
			Help:      "Number of notified event keys held in memory",
		},
	)

	// DedupSaveErrorsTotal counts failed key-set persists.
	DedupSaveErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dedup",
			Name:      "save_errors_total",
			Help:      "Total number of failed notified key persists",
		},
	)
)
