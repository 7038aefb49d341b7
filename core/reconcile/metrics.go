package reconcile

import "github.com/prometheus/client_golang/prometheus"

var repairsTotal prometheus.Counter

func newCollectors() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_repairs_total",
		Help: "Corrective availability writes made by the reconciler",
	})
}

func init() {
	repairsTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers reconciler metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(repairsTotal)
}

// ResetMetrics reinitializes collectors for testing purposes and registers
// them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	repairsTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
