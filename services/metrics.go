package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	transitions    *prometheus.CounterVec
	reconciliation *prometheus.CounterVec
	storeConflicts prometheus.Counter
	oracleErrors   prometheus.Counter
	corruptRecords prometheus.Counter
	badgesAwarded  *prometheus.CounterVec
}

// NewMetrics builds the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streak_transitions_total",
				Help: "Streak record transitions by reason",
			},
			[]string{"reason"},
		),
		reconciliation: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streak_reconciliations_total",
				Help: "Validator outcomes",
			},
			[]string{"outcome"},
		),
		storeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_store_conflicts_total",
			Help: "Optimistic write conflicts on the streak store",
		}),
		oracleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_oracle_errors_total",
			Help: "Failed activity presence queries",
		}),
		corruptRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "streak_corrupt_records_total",
			Help: "Streak records normalized because they broke an invariant",
		}),
		badgesAwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "badges_awarded_total",
				Help: "Badges awarded by type",
			},
			[]string{"type"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.transitions,
			m.reconciliation,
			m.storeConflicts,
			m.oracleErrors,
			m.corruptRecords,
			m.badgesAwarded,
		)
	}
	return m
}

func (m *Metrics) transition(t Transition) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) reconciled(outcome ValidationOutcome) {
	if m == nil {
		return
	}
	m.reconciliation.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.storeConflicts.Inc()
}

func (m *Metrics) oracleError() {
	if m == nil {
		return
	}
	m.oracleErrors.Inc()
}

func (m *Metrics) corrupt() {
	if m == nil {
		return
	}
	m.corruptRecords.Inc()
}

func (m *Metrics) awarded(badgeType string) {
	if m == nil {
		return
	}
	m.badgesAwarded.WithLabelValues(badgeType).Inc()
}
