package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevaops/seva/core/model"
	"github.com/sevaops/seva/core/store"
	"github.com/sevaops/seva/infra/logger"
)

func TestExpectedStatus(t *testing.T) {
	assert.Equal(t, model.StatusOffline, ExpectedStatus(false, 3))
	assert.Equal(t, model.StatusBusy, ExpectedStatus(true, 1))
	assert.Equal(t, model.StatusAvailable, ExpectedStatus(true, 0))
}

func seedDrift(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	// Stuck busy with no active assignment.
	st.PutVolunteer(model.Volunteer{ID: "stuck", IsActive: true, Availability: model.StatusBusy})
	// Correctly available.
	st.PutVolunteer(model.Volunteer{ID: "ok", IsActive: true, Availability: model.StatusAvailable})
	// Marked available but actually holding an active assignment.
	st.PutVolunteer(model.Volunteer{ID: "working", IsActive: true, Availability: model.StatusAvailable})
	st.PutRequest(model.Request{ID: "r1", Status: model.RequestPending, CreatedAt: time.Now()})
	_, err := st.CreateAssignment(context.Background(), model.Assignment{
		RequestID: "r1", VolunteerID: "working", Method: model.MethodAuto, AssignedAt: time.Now(),
	}, model.RequestPending)
	require.NoError(t, err)
	// CreateAssignment already set "working" busy; force drift back.
	require.NoError(t, st.UpdateVolunteerStatus(context.Background(), "working", model.StatusAvailable))
	return st
}

func TestReconcileRepairsDrift(t *testing.T) {
	st := seedDrift(t)
	r, err := NewReconciler(st, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	rep, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Checked)
	assert.Equal(t, 2, rep.RepairedCount)

	stuck, _ := st.GetVolunteer(ctx, "stuck")
	assert.Equal(t, model.StatusAvailable, stuck.Availability)
	working, _ := st.GetVolunteer(ctx, "working")
	assert.Equal(t, model.StatusBusy, working.Availability)
}

func TestReconcileIsIdempotent(t *testing.T) {
	st := seedDrift(t)
	r, err := NewReconciler(st, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.NotZero(t, first.RepairedCount)

	second, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.RepairedCount, "no intervening change: second pass repairs nothing")
	assert.Empty(t, second.Repaired)
}

func TestReconcileLeavesOnDutyAlone(t *testing.T) {
	st := store.NewMemoryStore()
	st.PutVolunteer(model.Volunteer{ID: "v1", IsActive: true, Availability: model.StatusOnDuty})
	st.PutRequest(model.Request{ID: "r1", Status: model.RequestPending, CreatedAt: time.Now()})
	ctx := context.Background()
	_, err := st.CreateAssignment(ctx, model.Assignment{RequestID: "r1", VolunteerID: "v1", Method: model.MethodAuto}, model.RequestPending)
	require.NoError(t, err)
	// Restore on_duty after the commit flipped it to busy.
	require.NoError(t, st.UpdateVolunteerStatus(ctx, "v1", model.StatusOnDuty))

	r, err := NewReconciler(st, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	rep, err := r.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.RepairedCount, "on_duty is a valid refinement of busy")
}

func TestNewReconcilerRequiresStore(t *testing.T) {
	_, err := NewReconciler(nil, nil, nil, logger.NopLogger{})
	assert.Error(t, err)
}
