package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsAppliedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_engine",
		Subsystem: "aggregator",
		Name:      "events_applied_total",
		Help:      "Number of activity events folded into a daily summary, by kind.",
	}, []string{"kind"})

	duplicatesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_engine",
		Subsystem: "aggregator",
		Name:      "duplicate_events_total",
		Help:      "Number of replayed event ids absorbed as no-ops, by kind.",
	}, []string{"kind"})

	streakTransitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progress_engine",
		Subsystem: "streaks",
		Name:      "transitions_total",
		Help:      "Number of streak transitions, by result (started, extended, reset, unchanged, out_of_order).",
	}, []string{"result"})

	summaryUpsertGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "progress_engine",
		Subsystem: "persistence",
		Name:      "last_summary_upsert_timestamp_seconds",
		Help:      "Unix timestamp of the most recent daily summary write.",
	})
)

func init() {
	prometheus.MustRegister(eventsAppliedCounter, duplicatesCounter, streakTransitionCounter, summaryUpsertGauge)
}

// RecordEventApplied counts a freshly applied event.
func RecordEventApplied(kind string) {
	eventsAppliedCounter.WithLabelValues(kind).Inc()
}

// RecordDuplicateAbsorbed counts an event id replay absorbed by the ledger.
func RecordDuplicateAbsorbed(kind string) {
	duplicatesCounter.WithLabelValues(kind).Inc()
}

// RecordStreakTransition counts a streak evaluator outcome.
func RecordStreakTransition(result string) {
	streakTransitionCounter.WithLabelValues(result).Inc()
}

// RecordSummaryPersisted updates the persistence watermark gauge.
func RecordSummaryPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	summaryUpsertGauge.Set(float64(ts.Unix()))
}
