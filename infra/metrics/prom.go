package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/sevaops/seva/core/metrics"
	"github.com/sevaops/seva/infra/logger"
)

// PromSink records matching activity in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	repairs     prometheus.Counter
	scores      prometheus.Histogram
	floor       prometheus.Gauge
}

// NewPromSink registers matching metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seva_assignments_total",
		Help: "Total number of committed assignments",
	}, []string{"request_type", "priority", "method"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seva_assignment_transitions_total",
		Help: "Total number of assignment state transitions",
	}, []string{"from", "to"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seva_assign_rejections_total",
		Help: "Auto-assign attempts that committed nothing",
	}, []string{"reason"})
	repairs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seva_reconciler_repairs_total",
		Help: "Volunteer status repairs applied by the reconciler",
	})
	scores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seva_committed_match_score",
		Help:    "Match score of committed assignments",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
	floor := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "seva_suggested_min_score",
		Help: "Advisory confidence floor suggested by the threshold tuner",
	})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(rejections); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			rejections = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(repairs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			repairs = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(scores); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			scores = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(floor); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			floor = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		assignments: assignments,
		transitions: transitions,
		rejections:  rejections,
		repairs:     repairs,
		scores:      scores,
		floor:       floor,
	}, nil
}

// RecordAssignment increments the counter and observes the score for each
// committed assignment.
func (s *PromSink) RecordAssignment(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.assignments.WithLabelValues(string(r.RequestType), string(r.Priority), string(r.Method)).Inc()
		s.scores.Observe(r.Score)
	}
	return nil
}

// RecordTransition increments the transition counter.
func (s *PromSink) RecordTransition(rec coremetrics.TransitionRecord) error {
	s.transitions.WithLabelValues(string(rec.From), string(rec.To)).Inc()
	return nil
}

// RecordRepairs counts corrective writes made by the reconciler.
func (s *PromSink) RecordRepairs(recs []coremetrics.RepairRecord) error {
	s.repairs.Add(float64(len(recs)))
	return nil
}

// RecordRejection counts an attempt that committed nothing, by reason.
func (s *PromSink) RecordRejection(rec coremetrics.RejectionRecord) error {
	s.rejections.WithLabelValues(rec.Reason).Inc()
	return nil
}

// RecordSuggestedFloor publishes the tuner's advisory confidence floor.
func (s *PromSink) RecordSuggestedFloor(v float64) error {
	s.floor.Set(v)
	return nil
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the
// given address. The server runs until the provided context is canceled.
// A dedicated ServeMux is used to avoid interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.New("prom-server").Errorf("shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
