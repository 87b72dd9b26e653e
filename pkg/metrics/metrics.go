// Package metrics instruments vaultflow's workflow, execution, and bus
// components with Prometheus collectors. Metrics are kept in-process only:
// the dashboard writer does not render them and they are not exposed over
// HTTP (spec's Non-goals exclude a networked API surface).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector vaultflow registers.
type Metrics struct {
	TransitionsTotal  *prometheus.CounterVec
	TransitionLatency *prometheus.HistogramVec

	DeadLetterDepth prometheus.Gauge

	BusOverflowTotal *prometheus.CounterVec

	StepDuration  *prometheus.HistogramVec
	StepsTotal    *prometheus.CounterVec
	RollbacksTotal *prometheus.CounterVec

	ApprovalDecisionsTotal *prometheus.CounterVec

	HealthCheckFailuresTotal *prometheus.CounterVec
}

// New creates and registers every collector under the given namespace
// (e.g. "vaultflow") against the default Prometheus registry.
func New(namespace string) *Metrics {
	return NewWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewWithRegisterer is like New but registers against the given
// Registerer, so tests and multiple independent vaultflow instances in
// one process can use isolated registries instead of colliding on the
// global default.
func NewWithRegisterer(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "vaultflow"
	}
	factory := promauto.With(reg)

	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total workflow state transitions attempted, labeled by outcome.",
			},
			[]string{"from_state", "to_state", "outcome"},
		),
		TransitionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transition_duration_seconds",
				Help:      "Time to complete one transition, including lock acquisition.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"from_state", "to_state"},
		),
		DeadLetterDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dead_letter_depth",
				Help:      "Current number of entries in the dead-letter queue.",
			},
		),
		BusOverflowTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bus_overflow_total",
				Help:      "Total events dropped due to a full subscriber queue.",
			},
			[]string{"event_type"},
		),
		StepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Time to execute one plan step.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode", "outcome"},
		),
		StepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_total",
				Help:      "Total plan steps executed, labeled by outcome.",
			},
			[]string{"mode", "outcome"},
		),
		RollbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rollbacks_total",
				Help:      "Total rollback invocations, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		ApprovalDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "approval_decisions_total",
				Help:      "Total approval-engine evaluations, labeled by decision and risk level.",
			},
			[]string{"decision", "risk_level"},
		),
		HealthCheckFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "health_check_failures_total",
				Help:      "Total failed health checks, labeled by service name.",
			},
			[]string{"service"},
		),
	}
}
