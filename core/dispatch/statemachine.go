package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/metrics"
	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/store"
)

// TransitionContext carries optional caller-supplied data for a transition.
type TransitionContext struct {
	// CompletionLocation, when set on a completed transition, overrides the
	// best-effort location snapshot taken from the location feed.
	CompletionLocation *model.Location
}

// Transition moves the assignment to target and applies the side effects of
// the new state. Illegal moves return InvalidTransitionError; completed and
// cancelled are terminal.
func (m *AssignmentManager) Transition(ctx context.Context, assignmentID string, target model.AssignmentStatus, tc *TransitionContext) (model.Assignment, error) {
	a, err := m.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Assignment{}, ErrAssignmentNotFound
		}
		return model.Assignment{}, err
	}
	if !a.CanTransition(target) {
		return model.Assignment{}, &InvalidTransitionError{AssignmentID: assignmentID, From: a.Status, To: target}
	}

	now := time.Now()
	from := a.Status
	a.Status = target
	switch target {
	case model.AssignmentAccepted:
		a.AcceptedAt = &now
	case model.AssignmentInProgress:
		// The fast path from pending leaves AcceptedAt unset on purpose.
		if a.StartedAt == nil {
			a.StartedAt = &now
		}
	case model.AssignmentCompleted:
		a.CompletedAt = &now
		a.CompletionLocation = m.completionLocation(ctx, a, tc)
	}

	if err := m.store.UpdateAssignment(ctx, a); err != nil {
		return model.Assignment{}, err
	}

	switch target {
	case model.AssignmentInProgress:
		if err := m.store.UpdateVolunteerStatus(ctx, a.VolunteerID, model.StatusOnDuty); err != nil {
			m.logger.Errorf("update volunteer %s status: %v", a.VolunteerID, err)
		}
	case model.AssignmentCompleted:
		m.recomputeVolunteer(ctx, a.VolunteerID)
	case model.AssignmentCancelled:
		m.reopenRequestIfAbandoned(ctx, a)
		m.recomputeVolunteer(ctx, a.VolunteerID)
	}

	transitionsTotal.WithLabelValues(string(target)).Inc()
	if m.bus != nil {
		m.bus.Publish(events.TransitionEvent{
			AssignmentID: a.ID,
			VolunteerID:  a.VolunteerID,
			From:         from,
			To:           target,
			At:           now,
		})
	}
	if tr, ok := m.metrics.(metrics.TransitionRecorder); ok {
		if err := tr.RecordTransition(metrics.TransitionRecord{
			AssignmentID: a.ID,
			VolunteerID:  a.VolunteerID,
			From:         from,
			To:           target,
			Time:         now,
		}); err != nil {
			m.logger.Errorf("transition metrics error: %v", err)
		}
	}
	m.logger.Infof("assignment %s moved %s -> %s", a.ID, from, target)
	return a, nil
}

// completionLocation resolves where the work finished: the caller's snapshot
// when provided, otherwise the volunteer's latest feed sample. A miss is
// non-fatal, completion proceeds without a location.
func (m *AssignmentManager) completionLocation(ctx context.Context, a model.Assignment, tc *TransitionContext) *model.Location {
	if tc != nil && tc.CompletionLocation != nil {
		return tc.CompletionLocation
	}
	loc, err := m.store.LatestLocation(ctx, a.VolunteerID)
	if err != nil {
		m.logger.Debugf("no completion location for assignment %s: %v", a.ID, err)
		return nil
	}
	return &loc
}

// reopenRequestIfAbandoned puts the request back into the matching pool when
// its only assignment was cancelled, unless the request itself was cancelled
// in the meantime.
func (m *AssignmentManager) reopenRequestIfAbandoned(ctx context.Context, cancelled model.Assignment) {
	siblings, err := m.store.GetAssignmentsForRequest(ctx, cancelled.RequestID)
	if err != nil {
		m.logger.Errorf("list assignments for request %s: %v", cancelled.RequestID, err)
		return
	}
	for _, s := range siblings {
		if s.ID != cancelled.ID && s.Status != model.AssignmentCancelled {
			return
		}
	}
	req, err := m.store.GetRequest(ctx, cancelled.RequestID)
	if err != nil {
		m.logger.Errorf("load request %s: %v", cancelled.RequestID, err)
		return
	}
	if req.Status == model.RequestCancelled || req.Status == model.RequestPending {
		return
	}
	if err := m.store.UpdateRequestStatus(ctx, req.ID, model.RequestPending, req.Status); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Someone moved the request first; leave it to them.
			m.logger.Warnf("request %s changed while reopening, leaving as is", req.ID)
			return
		}
		m.logger.Errorf("reopen request %s: %v", req.ID, err)
	}
}
