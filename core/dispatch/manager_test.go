package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/match"
	"github.com/sevaops/seva/core/metrics"
	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/notify"
	"github.com/sevaops/seva/core/store"
	"github.com/sevaops/seva/infra/logger"
	"github.com/sevaops/seva/internal/eventbus"
)

func newManager(t *testing.T, st store.Store, n notify.Notifier, cfg Config) *AssignmentManager {
	t.Helper()
	finder := match.NewFinder(st, cfg.Finder)
	mgr, err := NewAssignmentManager(st, finder, match.NewScorer(), n, cfg, nil, nil, logger.NopLogger{}, nil)
	require.NoError(t, err)
	return mgr
}

func seedMedicalScenario() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.PutRequest(model.Request{
		ID: "r1", Type: model.RequestMedical, Priority: model.PriorityHigh,
		Lat: 25.4358, Lon: 81.8463, Status: model.RequestPending, CreatedAt: time.Now(),
	})
	// Single candidate ~500m away, available, five stars.
	st.PutVolunteer(model.Volunteer{
		ID: "v1", Skills: []string{"medical", "first aid", "doctor", "nurse"},
		Lat: 25.4403, Lon: 81.8463, LocationAt: time.Now(),
		IsActive: true, Availability: model.StatusAvailable, RatingAverage: 5,
	})
	return st
}

func TestAutoAssignIdealCandidate(t *testing.T) {
	st := seedMedicalScenario()
	n := notify.NewMockNotifier()
	mgr := newManager(t, st, n, Config{})
	ctx := context.Background()

	res, err := mgr.AutoAssign(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, res.Assigned)
	assert.Equal(t, "v1", res.VolunteerID)
	assert.NotEmpty(t, res.AssignmentID)
	assert.InDelta(t, 1.0, res.Score, 0.001)

	req, _ := st.GetRequest(ctx, "r1")
	assert.Equal(t, model.RequestAssigned, req.Status)
	vol, _ := st.GetVolunteer(ctx, "v1")
	assert.Equal(t, model.StatusBusy, vol.Availability)

	a, err := st.GetAssignment(ctx, res.AssignmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentPending, a.Status)
	assert.Equal(t, model.MethodAuto, a.Method)

	sent := n.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "v1", sent[0].VolunteerID)
	assert.Equal(t, res.AssignmentID, sent[0].Data["assignment_id"])
}

func TestAutoAssignRequestNotPendingWritesNothing(t *testing.T) {
	st := seedMedicalScenario()
	ctx := context.Background()
	require.NoError(t, st.UpdateRequestStatus(ctx, "r1", model.RequestCancelled, model.RequestPending))
	mgr := newManager(t, st, nil, Config{})

	res, err := mgr.AutoAssign(ctx, "r1")
	assert.ErrorIs(t, err, ErrRequestNotPending)
	assert.False(t, res.Assigned)
	assert.Equal(t, ReasonNotPending, res.Reason)

	vol, _ := st.GetVolunteer(ctx, "v1")
	assert.Equal(t, model.StatusAvailable, vol.Availability, "no writes on rejection")
}

func TestAutoAssignRequestNotFound(t *testing.T) {
	mgr := newManager(t, store.NewMemoryStore(), nil, Config{})
	_, err := mgr.AutoAssign(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestAutoAssignNoCandidates(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutRequest(model.Request{
		ID: "r1", Type: model.RequestMedical, Priority: model.PriorityHigh,
		Lat: 10.0, Lon: 10.0, Status: model.RequestPending, CreatedAt: time.Now(),
	})
	mgr := newManager(t, st, nil, Config{})

	res, err := mgr.AutoAssign(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Equal(t, ReasonNoCandidates, res.Reason)

	req, _ := st.GetRequest(context.Background(), "r1")
	assert.Equal(t, model.RequestPending, req.Status, "request stays pending")
}

func TestAutoAssignScoreBelowThreshold(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutRequest(model.Request{
		ID: "r1", Type: model.RequestMedical, Priority: model.PriorityLow,
		Lat: 25.4358, Lon: 81.8463, Status: model.RequestPending, CreatedAt: time.Now(),
	})
	// Offline volunteer with mostly irrelevant skills, 8km out: scores well
	// under 0.6.
	st.PutVolunteer(model.Volunteer{
		ID: "v1", Skills: []string{"medical", "cooking", "photography"}, Lat: 25.5078, Lon: 81.8463,
		IsActive: true, Availability: model.StatusOffline,
	})
	mgr := newManager(t, st, nil, Config{Finder: match.FinderConfig{RadiusMeters: 10000}})
	ctx := context.Background()

	res, err := mgr.AutoAssign(ctx, "r1")
	var sbt *ScoreBelowThresholdError
	require.ErrorAs(t, err, &sbt)
	assert.Equal(t, ReasonBelowThreshold, res.Reason)
	assert.Equal(t, sbt.Score, res.Score)
	assert.Less(t, res.Score, 0.6)
	assert.Greater(t, res.Score, 0.0)

	// Nothing committed.
	req, _ := st.GetRequest(ctx, "r1")
	assert.Equal(t, model.RequestPending, req.Status)
	got, _ := st.GetActiveAssignmentsForVolunteer(ctx, "v1")
	assert.Empty(t, got)
}

func TestAutoAssignPicksHighestScore(t *testing.T) {
	st := seedMedicalScenario()
	// A second, worse candidate: farther away and lower rated.
	st.PutVolunteer(model.Volunteer{
		ID: "v2", Skills: []string{"medical"}, Lat: 25.47, Lon: 81.8463,
		IsActive: true, Availability: model.StatusAvailable, RatingAverage: 2,
	})
	mgr := newManager(t, st, nil, Config{})

	res, err := mgr.AutoAssign(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.VolunteerID)
}

func TestBatchNoDoubleBooking(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now()
	for i, id := range []string{"r1", "r2"} {
		st.PutRequest(model.Request{
			ID: id, Type: model.RequestMedical, Priority: model.PriorityHigh,
			Lat: 25.4358, Lon: 81.8463, Status: model.RequestPending,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}
	for _, id := range []string{"v1", "v2"} {
		st.PutVolunteer(model.Volunteer{
			ID: id, Skills: []string{"medical"}, Lat: 25.4360, Lon: 81.8463,
			IsActive: true, Availability: model.StatusAvailable, RatingAverage: 5,
		})
	}
	mgr := newManager(t, st, nil, Config{})

	out, err := mgr.BatchAutoAssign(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, out.AssignedCount)
	assert.Equal(t, 0, out.FailedCount)
	require.Len(t, out.Details, 2)
	assert.NotEqual(t, out.Details[0].VolunteerID, out.Details[1].VolunteerID,
		"one volunteer must not serve two requests in a batch")
}

func TestBatchRecordsFailuresAndContinues(t *testing.T) {
	st := store.NewMemoryStore()
	now := time.Now()
	// r1 has nobody in range, r2 has a perfect candidate.
	st.PutRequest(model.Request{
		ID: "r1", Type: model.RequestMedical, Priority: model.PriorityHigh,
		Lat: 10, Lon: 10, Status: model.RequestPending, CreatedAt: now,
	})
	st.PutRequest(model.Request{
		ID: "r2", Type: model.RequestMedical, Priority: model.PriorityHigh,
		Lat: 25.4358, Lon: 81.8463, Status: model.RequestPending, CreatedAt: now.Add(time.Second),
	})
	st.PutVolunteer(model.Volunteer{
		ID: "v1", Skills: []string{"medical"}, Lat: 25.4360, Lon: 81.8463,
		IsActive: true, Availability: model.StatusAvailable, RatingAverage: 5,
	})
	mgr := newManager(t, st, nil, Config{})

	out, err := mgr.BatchAutoAssign(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, out.AssignedCount)
	assert.Equal(t, 1, out.FailedCount)
	require.Len(t, out.Details, 2)
	assert.Equal(t, "r1", out.Details[0].RequestID)
	assert.Equal(t, ReasonNoCandidates, out.Details[0].Reason)
	assert.True(t, out.Details[1].Assigned)
}

func TestNotificationFailureDoesNotUnwindAssignment(t *testing.T) {
	st := seedMedicalScenario()
	n := notify.NewMockNotifier()
	n.FailIDs["v1"] = true
	mgr := newManager(t, st, n, Config{})
	ctx := context.Background()

	res, err := mgr.AutoAssign(ctx, "r1")
	require.NoError(t, err, "delivery failure is non-fatal")
	assert.True(t, res.Assigned)

	req, _ := st.GetRequest(ctx, "r1")
	assert.Equal(t, model.RequestAssigned, req.Status)
}

func TestAutoAssignPublishesEvent(t *testing.T) {
	st := seedMedicalScenario()
	bus := eventbus.New()
	defer bus.Close()
	sub := bus.Subscribe()
	finder := match.NewFinder(st, match.FinderConfig{})
	mgr, err := NewAssignmentManager(st, finder, match.NewScorer(), nil, Config{}, nil, bus, logger.NopLogger{}, nil)
	require.NoError(t, err)

	res, err := mgr.AutoAssign(context.Background(), "r1")
	require.NoError(t, err)

	select {
	case raw := <-sub:
		ev, ok := raw.(events.AssignmentEvent)
		require.True(t, ok, "expected AssignmentEvent, got %T", raw)
		assert.Equal(t, res.AssignmentID, ev.Assignment.ID)
		assert.InDelta(t, res.Score, ev.Score, 0.001)
	default:
		t.Fatal("expected an assignment event on the bus")
	}
}

// conflictStore wraps MemoryStore to fail the first CreateAssignment with a
// conditional-write conflict, simulating a concurrent caller.
type conflictStore struct {
	*store.MemoryStore
	failures int
}

func (c *conflictStore) CreateAssignment(ctx context.Context, a model.Assignment, expected model.RequestStatus) (model.Assignment, error) {
	if c.failures > 0 {
		c.failures--
		return model.Assignment{}, store.ErrConflict
	}
	return c.MemoryStore.CreateAssignment(ctx, a, expected)
}

func TestAutoAssignRetriesConflictOnceThenSucceeds(t *testing.T) {
	st := &conflictStore{MemoryStore: seedMedicalScenario(), failures: 1}
	mgr := newManager(t, st, nil, Config{})

	res, err := mgr.AutoAssign(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, res.Assigned)
}

func TestAutoAssignSurfacesRepeatedConflict(t *testing.T) {
	st := &conflictStore{MemoryStore: seedMedicalScenario(), failures: 2}
	mgr := newManager(t, st, nil, Config{})

	res, err := mgr.AutoAssign(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrWriteConflict)
	assert.Equal(t, ReasonWriteConflict, res.Reason)
}

func TestNewAssignmentManagerRequiresDependencies(t *testing.T) {
	_, err := NewAssignmentManager(nil, nil, match.NewScorer(), nil, Config{}, nil, nil, logger.NopLogger{}, nil)
	assert.Error(t, err)
}

func TestMinScoreOverrideInBatch(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutRequest(model.Request{
		ID: "r1", Type: model.RequestMedical, Priority: model.PriorityLow,
		Lat: 25.4358, Lon: 81.8463, Status: model.RequestPending, CreatedAt: time.Now(),
	})
	// Mediocre candidate: scores above 0.3 but below the default 0.6.
	st.PutVolunteer(model.Volunteer{
		ID: "v1", Skills: []string{"medical", "cooking"}, Lat: 25.4720, Lon: 81.8463,
		IsActive: true, Availability: model.StatusBusy,
	})
	mgr := newManager(t, st, nil, Config{})
	ctx := context.Background()

	out, err := mgr.BatchAutoAssign(ctx, 10, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 1, out.AssignedCount, "lowered floor admits the mediocre match")
}

type fixedSuggestTuner struct {
	observed []float64
	floor    float64
}

func (f *fixedSuggestTuner) Observe(score float64)    { f.observed = append(f.observed, score) }
func (f *fixedSuggestTuner) Suggest() (float64, bool) { return f.floor, true }

type floorSink struct {
	metrics.NopSink
	floors []float64
}

func (s *floorSink) RecordSuggestedFloor(v float64) error {
	s.floors = append(s.floors, v)
	return nil
}

func TestCommitSurfacesSuggestedFloor(t *testing.T) {
	st := seedMedicalScenario()
	tn := &fixedSuggestTuner{floor: 0.42}
	sink := &floorSink{}
	finder := match.NewFinder(st, match.FinderConfig{})
	mgr, err := NewAssignmentManager(st, finder, match.NewScorer(), nil, Config{}, sink, nil, logger.NopLogger{}, tn)
	require.NoError(t, err)

	_, err = mgr.AutoAssign(context.Background(), "r1")
	require.NoError(t, err)

	require.Len(t, tn.observed, 1, "winning score reaches the tuner")
	require.Len(t, sink.floors, 1, "suggestion reaches the sink")
	assert.Equal(t, 0.42, sink.floors[0])
}

func TestErrorsAreTyped(t *testing.T) {
	err := error(&ScoreBelowThresholdError{Score: 0.45, Threshold: 0.6})
	var sbt *ScoreBelowThresholdError
	require.True(t, errors.As(err, &sbt))
	assert.Equal(t, 0.45, sbt.Score)
	assert.Contains(t, err.Error(), "0.45")
}
