package test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevaops/seva/app"
	"github.com/sevaops/seva/config"
	"github.com/sevaops/seva/core/dispatch"
	"github.com/sevaops/seva/core/events"
	"github.com/sevaops/seva/core/match"
	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/notify"
	"github.com/sevaops/seva/core/reconcile"
	"github.com/sevaops/seva/core/store"
	"github.com/sevaops/seva/infra/logger"
	infrastore "github.com/sevaops/seva/infra/store"
)

// TestAssignmentLifecycleOverSQLite walks one request through the whole
// lifecycle against the durable store: match, assign, start, complete,
// reconcile.
func TestAssignmentLifecycleOverSQLite(t *testing.T) {
	st, err := infrastore.NewSQLiteStore(filepath.Join(t.TempDir(), "seva.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	ctx := context.Background()

	require.NoError(t, st.PutRequest(ctx, model.Request{
		ID: "r1", RequesterID: "p1", Type: model.RequestMedical, Priority: model.PriorityHigh,
		Lat: 25.4358, Lon: 81.8463, Status: model.RequestPending, CreatedAt: time.Now(),
	}))
	require.NoError(t, st.PutVolunteer(ctx, model.Volunteer{
		ID: "v1", Name: "Asha", Skills: []string{"first aid", "cpr"}, Lat: 25.4360, Lon: 81.8465,
		LocationAt: time.Now(), RatingAverage: 5, IsActive: true, Availability: model.StatusAvailable,
	}))
	require.NoError(t, st.RecordLocation(ctx, model.Location{
		UserID: "v1", Lat: 25.4360, Lon: 81.8465, UpdatedAt: time.Now(),
	}))

	cfg := dispatch.Config{}
	cfg.SetDefaults()
	mock := notify.NewMockNotifier()
	mgr, err := dispatch.NewAssignmentManager(
		st, match.NewFinder(st, cfg.Finder), match.NewScorer(), mock, cfg, nil, nil, logger.NopLogger{}, nil)
	require.NoError(t, err)

	res, err := mgr.AutoAssign(ctx, "r1")
	require.NoError(t, err)
	require.True(t, res.Assigned)
	assert.Equal(t, "v1", res.VolunteerID)
	assert.Len(t, mock.Sent(), 1)

	// Fast path straight to work, then complete.
	_, err = mgr.Transition(ctx, res.AssignmentID, model.AssignmentInProgress, nil)
	require.NoError(t, err)
	a, err := mgr.Transition(ctx, res.AssignmentID, model.AssignmentCompleted, nil)
	require.NoError(t, err)
	require.NotNil(t, a.CompletedAt)
	require.NotNil(t, a.CompletionLocation)

	vol, err := st.GetVolunteer(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAvailable, vol.Availability)

	rec, err := reconcile.NewReconciler(st, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	rep, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.RepairedCount, "lifecycle left no drift behind")
}

func TestServiceWiringFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Track.SetDefaults()
	cfg.Notify.SetDefaults()
	cfg.Reconcile.SetDefaults()
	cfg.API.SetDefaults()

	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	require.NotNil(t, svc.Manager)
	require.NotNil(t, svc.Reconciler)
	require.NotNil(t, svc.Tracker)
	require.NotNil(t, svc.Changes)

	// Nothing seeded: a reconcile pass is a clean no-op.
	rep, err := svc.Reconciler.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Checked)

	// Store writes reach realtime subscribers through the change feed.
	ch := svc.Changes.Subscribe("requests")
	ms, ok := svc.Store.(*store.MemoryStore)
	require.True(t, ok)
	ms.PutRequest(model.Request{ID: "r1", Status: model.RequestPending, CreatedAt: time.Now()})
	select {
	case ev := <-ch:
		assert.Equal(t, events.ChangeInsert, ev.Kind)
		assert.Equal(t, "r1", ev.RecordID)
	default:
		t.Fatal("no change event delivered")
	}
}
