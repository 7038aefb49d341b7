package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/logger"
	"github.com/sevaops/seva/core/metrics"
	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/store"
	"github.com/sevaops/seva/internal/eventbus"
)

// ExpectedStatus is the single rule deriving a volunteer's availability from
// authoritative assignment state.
func ExpectedStatus(isActive bool, activeAssignments int) model.AvailabilityStatus {
	if !isActive {
		return model.StatusOffline
	}
	if activeAssignments > 0 {
		return model.StatusBusy
	}
	return model.StatusAvailable
}

// Repair describes one corrective write.
type Repair struct {
	VolunteerID string                   `json:"volunteer_id"`
	From        model.AvailabilityStatus `json:"from"`
	To          model.AvailabilityStatus `json:"to"`
}

// Report summarises one reconciliation pass.
type Report struct {
	Checked       int      `json:"checked"`
	RepairedCount int      `json:"repaired_count"`
	Repaired      []Repair `json:"repaired"`
}

// Reconciler recomputes every active volunteer's availability and repairs
// drift. Its writes are idempotent: a second pass with no intervening
// assignment change repairs nothing.
type Reconciler struct {
	store   store.Store
	metrics metrics.MetricsSink
	bus     eventbus.EventBus
	logger  logger.Logger
}

// NewReconciler creates a Reconciler. Sink and bus may be nil.
func NewReconciler(st store.Store, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Reconciler, error) {
	if st == nil || log == nil {
		return nil, fmt.Errorf("reconcile: nil parameter provided to NewReconciler")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Reconciler{store: st, metrics: sink, bus: bus, logger: log}, nil
}

// Reconcile runs one pass and returns what it repaired. One-status-does-not-
// match is the only trigger for a write; volunteers already in their expected
// state are left untouched. The on_duty status is a legitimate refinement of
// busy set by an in-progress transition, so it counts as matching busy.
func (r *Reconciler) Reconcile(ctx context.Context) (Report, error) {
	vols, err := r.store.ListActiveVolunteers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list active volunteers: %w", err)
	}
	counts, err := r.store.ActiveAssignmentCountByVolunteer(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("count active assignments: %w", err)
	}

	rep := Report{Checked: len(vols)}
	var recs []metrics.RepairRecord
	now := time.Now()
	for _, v := range vols {
		expected := ExpectedStatus(v.IsActive, counts[v.ID])
		if v.Availability == expected {
			continue
		}
		if expected == model.StatusBusy && v.Availability == model.StatusOnDuty {
			continue
		}
		if err := r.store.UpdateVolunteerStatus(ctx, v.ID, expected); err != nil {
			r.logger.Errorf("repair volunteer %s: %v", v.ID, err)
			continue
		}
		rep.RepairedCount++
		rep.Repaired = append(rep.Repaired, Repair{VolunteerID: v.ID, From: v.Availability, To: expected})
		recs = append(recs, metrics.RepairRecord{VolunteerID: v.ID, From: v.Availability, To: expected, Time: now})
		repairsTotal.Inc()
		if r.bus != nil {
			r.bus.Publish(events.RepairEvent{VolunteerID: v.ID, From: v.Availability, To: expected, At: now})
		}
		r.logger.Warnf("repaired volunteer %s: %s -> %s", v.ID, v.Availability, expected)
	}

	if len(recs) > 0 {
		if rr, ok := r.metrics.(metrics.RepairRecorder); ok {
			if err := rr.RecordRepairs(recs); err != nil {
				r.logger.Errorf("repair metrics error: %v", err)
			}
		}
	}
	r.logger.Infof("reconciled %d volunteers, repaired %d", rep.Checked, rep.RepairedCount)
	return rep, nil
}
