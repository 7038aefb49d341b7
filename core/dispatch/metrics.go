package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	assignAttempts   *prometheus.CounterVec
	matchScores      prometheus.Histogram
	transitionsTotal *prometheus.CounterVec
	writeConflicts   prometheus.Counter
	notifyFailures   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter) {
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_assign_attempts_total",
			Help: "Auto-assign attempts by outcome",
		},
		[]string{"outcome"},
	)
	scores := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "match_score",
			Help:    "Winning match scores of committed assignments",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assignment_transitions_total",
			Help: "Assignment state transitions by target state",
		},
		[]string{"target"},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "assignment_write_conflicts_total",
			Help: "Conditional writes lost to a concurrent caller",
		},
	)
	notify := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Best-effort notifications that failed to deliver",
		},
	)
	return attempts, scores, transitions, conflicts, notify
}

func init() {
	assignAttempts, matchScores, transitionsTotal, writeConflicts, notifyFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers assignment metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(assignAttempts, matchScores, transitionsTotal, writeConflicts, notifyFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	assignAttempts, matchScores, transitionsTotal, writeConflicts, notifyFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
