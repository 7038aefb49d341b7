package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/logger"
	"github.com/sevaops/seva/core/match"
	"github.com/sevaops/seva/core/metrics"
	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/notify"
	"github.com/sevaops/seva/core/reconcile"
	"github.com/sevaops/seva/core/store"
	"github.com/sevaops/seva/internal/eventbus"
)

// AssignmentManager owns the matching and assignment lifecycle: it selects
// the best volunteer for a pending request, commits the assignment under the
// store's conditional-write guarantees and drives post-creation transitions.
type AssignmentManager struct {
	store    store.Store
	finder   *match.Finder
	scorer   match.Scorer
	notifier notify.Notifier
	cfg      Config
	metrics  metrics.MetricsSink
	bus      eventbus.EventBus
	logger   logger.Logger
	tuner    ThresholdTuner
}

// NewAssignmentManager creates a new manager. The store, finder and logger
// are required; notifier, sink, bus and tuner may be nil and degrade to
// no-ops.
func NewAssignmentManager(st store.Store, finder *match.Finder, scorer match.Scorer, notifier notify.Notifier, cfg Config, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger, tuner ThresholdTuner) (*AssignmentManager, error) {
	if st == nil || finder == nil || log == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewAssignmentManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.NopNotifier{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &AssignmentManager{
		store:    st,
		finder:   finder,
		scorer:   scorer,
		notifier: notifier,
		cfg:      cfg,
		metrics:  sink,
		bus:      bus,
		logger:   log,
		tuner:    tuner,
	}, nil
}

// MinScore returns the configured auto-assign confidence floor.
func (m *AssignmentManager) MinScore() float64 { return m.cfg.MinScore }

// AutoAssign matches the pending request to its best-scoring volunteer and
// commits the assignment. Attempts that commit nothing return a structured
// reason in the result alongside the error.
func (m *AssignmentManager) AutoAssign(ctx context.Context, requestID string) (AssignResult, error) {
	return m.autoAssign(ctx, requestID, m.cfg.MinScore)
}

func (m *AssignmentManager) autoAssign(ctx context.Context, requestID string, minScore float64) (AssignResult, error) {
	res := AssignResult{RequestID: requestID}

	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			res.Reason = ReasonStoreError
			return res, ErrRequestNotFound
		}
		res.Reason = ReasonStoreError
		return res, fmt.Errorf("load request %s: %w", requestID, err)
	}
	if req.Status != model.RequestPending {
		res.Reason = ReasonNotPending
		assignAttempts.WithLabelValues(ReasonNotPending).Inc()
		return res, ErrRequestNotPending
	}

	cands, err := m.finder.Candidates(ctx, req)
	if err != nil {
		res.Reason = ReasonStoreError
		return res, err
	}
	if len(cands) == 0 {
		res.Reason = ReasonNoCandidates
		assignAttempts.WithLabelValues(ReasonNoCandidates).Inc()
		m.recordRejection(req.ID, ReasonNoCandidates, 0)
		return res, ErrNoCandidates
	}

	ranked := rankByScore(m.scorer.ScoreAll(cands, req))
	best := ranked[0]
	if best.FinalScore < minScore {
		res.Reason = ReasonBelowThreshold
		res.Score = best.FinalScore
		assignAttempts.WithLabelValues(ReasonBelowThreshold).Inc()
		m.recordRejection(req.ID, ReasonBelowThreshold, best.FinalScore)
		return res, &ScoreBelowThresholdError{Score: best.FinalScore, Threshold: minScore}
	}

	created, winner, err := m.commit(ctx, req, ranked, minScore)
	if err != nil {
		switch {
		case errors.Is(err, ErrWriteConflict):
			res.Reason = ReasonWriteConflict
		case errors.Is(err, ErrRequestNotPending):
			res.Reason = ReasonNotPending
		case errors.Is(err, ErrNoCandidates):
			res.Reason = ReasonNoCandidates
		default:
			res.Reason = ReasonStoreError
		}
		assignAttempts.WithLabelValues(res.Reason).Inc()
		return res, err
	}

	res.Assigned = true
	res.VolunteerID = created.VolunteerID
	res.AssignmentID = created.ID
	res.Score = winner.FinalScore

	assignAttempts.WithLabelValues("assigned").Inc()
	matchScores.Observe(winner.FinalScore)
	if m.tuner != nil {
		m.tuner.Observe(winner.FinalScore)
		m.publishSuggestedFloor()
	}
	if m.bus != nil {
		m.bus.Publish(events.AssignmentEvent{Assignment: created, Score: winner.FinalScore})
	}
	if err := m.metrics.RecordAssignment([]metrics.AssignmentRecord{{
		AssignmentID: created.ID,
		RequestID:    created.RequestID,
		VolunteerID:  created.VolunteerID,
		RequestType:  req.Type,
		Priority:     req.Priority,
		Method:       created.Method,
		Score:        winner.FinalScore,
		AssignedAt:   created.AssignedAt,
	}}); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	m.logger.Infof("assigned request %s to volunteer %s (score %.2f)", req.ID, created.VolunteerID, winner.FinalScore)

	m.notifyAssigned(ctx, created, req)
	return res, nil
}

// commit walks the ranked candidates and creates the assignment for the first
// one the store accepts. A candidate whose volunteer picked up other work
// since scoring is skipped; a conditional-write conflict on the request is
// retried exactly once against a fresh read.
func (m *AssignmentManager) commit(ctx context.Context, req model.Request, ranked []model.MatchCandidate, minScore float64) (model.Assignment, model.MatchCandidate, error) {
	for _, cand := range ranked {
		if cand.FinalScore < minScore {
			break
		}
		a := model.Assignment{
			ID:          uuid.NewString(),
			RequestID:   req.ID,
			VolunteerID: cand.Volunteer.ID,
			Status:      model.AssignmentPending,
			Method:      model.MethodAuto,
			MatchScore:  cand.FinalScore,
			AssignedAt:  time.Now(),
		}
		created, err := m.store.CreateAssignment(ctx, a, model.RequestPending)
		if err == nil {
			return created, cand, nil
		}
		if errors.Is(err, store.ErrVolunteerBusy) {
			m.logger.Warnf("volunteer %s became busy, trying next candidate", cand.Volunteer.ID)
			continue
		}
		if errors.Is(err, store.ErrConflict) {
			writeConflicts.Inc()
			cur, gerr := m.store.GetRequest(ctx, req.ID)
			if gerr != nil {
				return model.Assignment{}, model.MatchCandidate{}, fmt.Errorf("refresh request %s: %w", req.ID, gerr)
			}
			if cur.Status != model.RequestPending {
				return model.Assignment{}, model.MatchCandidate{}, ErrRequestNotPending
			}
			created, err = m.store.CreateAssignment(ctx, a, model.RequestPending)
			if err == nil {
				return created, cand, nil
			}
			if errors.Is(err, store.ErrVolunteerBusy) {
				continue
			}
			if errors.Is(err, store.ErrConflict) {
				writeConflicts.Inc()
				return model.Assignment{}, model.MatchCandidate{}, ErrWriteConflict
			}
			return model.Assignment{}, model.MatchCandidate{}, err
		}
		return model.Assignment{}, model.MatchCandidate{}, err
	}
	// Every eligible candidate was claimed while we were choosing.
	return model.Assignment{}, model.MatchCandidate{}, ErrNoCandidates
}

// BatchAutoAssign processes up to maxCount pending requests, oldest first.
// Requests are handled strictly sequentially: each commit changes the shared
// volunteer pool, so a volunteer assigned in one iteration must not be
// offered again in the next. A single request's failure never aborts the run.
// Non-positive maxCount and minScore fall back to the configured values.
func (m *AssignmentManager) BatchAutoAssign(ctx context.Context, maxCount int, minScore float64) (BatchResult, error) {
	if maxCount <= 0 {
		maxCount = m.cfg.BatchMaxCount
	}
	if minScore <= 0 {
		minScore = m.cfg.MinScore
	}
	reqs, err := m.store.ListPendingRequests(ctx, maxCount)
	if err != nil {
		return BatchResult{}, fmt.Errorf("list pending requests: %w", err)
	}

	var out BatchResult
	for _, r := range reqs {
		res, aerr := m.autoAssign(ctx, r.ID, minScore)
		if res.Assigned {
			out.AssignedCount++
		} else {
			out.FailedCount++
			m.logger.Debugf("batch: request %s not assigned: %v", r.ID, aerr)
		}
		out.Details = append(out.Details, res)
	}
	m.logger.Infof("batch assigned %d/%d pending requests", out.AssignedCount, len(reqs))
	return out, nil
}

// notifyAssigned sends a best-effort notification to the chosen volunteer.
// Failures are counted and logged; they never unwind the commit.
func (m *AssignmentManager) notifyAssigned(ctx context.Context, a model.Assignment, req model.Request) {
	nctx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.NotifyTimeoutSeconds)*time.Second)
	defer cancel()
	err := m.notifier.Notify(nctx, a.VolunteerID,
		"New assignment",
		fmt.Sprintf("A %s request (%s priority) has been assigned to you", req.Type, req.Priority),
		map[string]string{
			"assignment_id": a.ID,
			"request_id":    a.RequestID,
			"request_type":  string(req.Type),
		})
	if err != nil {
		notifyFailures.Inc()
		m.logger.Errorf("notify volunteer %s: %v", a.VolunteerID, err)
	}
}

// publishSuggestedFloor surfaces the tuner's advisory floor on sinks able to
// carry it. The configured threshold is never changed here.
func (m *AssignmentManager) publishSuggestedFloor() {
	sg, ok := m.tuner.(Suggester)
	if !ok {
		return
	}
	floor, ok := sg.Suggest()
	if !ok {
		return
	}
	m.logger.Debugw("suggested confidence floor", map[string]any{
		"floor":      floor,
		"configured": m.cfg.MinScore,
	})
	if fr, ok := m.metrics.(metrics.FloorRecorder); ok {
		if err := fr.RecordSuggestedFloor(floor); err != nil {
			m.logger.Errorf("floor metrics error: %v", err)
		}
	}
}

func (m *AssignmentManager) recordRejection(requestID, reason string, bestScore float64) {
	rr, ok := m.metrics.(metrics.RejectionRecorder)
	if !ok {
		return
	}
	if err := rr.RecordRejection(metrics.RejectionRecord{
		RequestID: requestID,
		Reason:    reason,
		BestScore: bestScore,
		Time:      time.Now(),
	}); err != nil {
		m.logger.Errorf("rejection metrics error: %v", err)
	}
}

// rankByScore orders candidates by descending FinalScore. The sort is stable,
// so ties keep the finder's order and the first-listed candidate wins.
func rankByScore(cands []model.MatchCandidate) []model.MatchCandidate {
	out := append([]model.MatchCandidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinalScore > out[j].FinalScore })
	return out
}

// recomputeVolunteer derives the volunteer's availability from authoritative
// assignment state using the reconciler's rule and writes it only on change.
func (m *AssignmentManager) recomputeVolunteer(ctx context.Context, volunteerID string) {
	v, err := m.store.GetVolunteer(ctx, volunteerID)
	if err != nil {
		m.logger.Errorf("recompute volunteer %s: %v", volunteerID, err)
		return
	}
	active, err := m.store.GetActiveAssignmentsForVolunteer(ctx, volunteerID)
	if err != nil {
		m.logger.Errorf("recompute volunteer %s: %v", volunteerID, err)
		return
	}
	expected := reconcile.ExpectedStatus(v.IsActive, len(active))
	if v.Availability == expected {
		return
	}
	if err := m.store.UpdateVolunteerStatus(ctx, volunteerID, expected); err != nil {
		m.logger.Errorf("update volunteer %s status: %v", volunteerID, err)
	}
}
