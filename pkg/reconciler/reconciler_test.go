package reconciler_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lprior-repo/oya-sub002/pkg/models"
	"github.com/lprior-repo/oya-sub002/pkg/reconciler"
)

type testLogger struct{}

func (l *testLogger) Infof(format string, args ...interface{})  {}
func (l *testLogger) Warnf(format string, args ...interface{})  {}
func (l *testLogger) Errorf(format string, args ...interface{}) {}

type fakeScheduler struct {
	assignments    []models.Assignment
	assignmentsErr error
	rescheduled    []string
	cancelled      []string
	rescheduleErr  error
}

func (f *fakeScheduler) Assignments() ([]models.Assignment, error) {
	if f.assignmentsErr != nil {
		return nil, f.assignmentsErr
	}
	out := make([]models.Assignment, len(f.assignments))
	copy(out, f.assignments)
	return out, nil
}

func (f *fakeScheduler) Reschedule(workflowID, beadID string) error {
	if f.rescheduleErr != nil {
		return f.rescheduleErr
	}
	f.rescheduled = append(f.rescheduled, beadID)
	return nil
}

func (f *fakeScheduler) CancelAndReschedule(workflowID, beadID string) error {
	f.cancelled = append(f.cancelled, beadID)
	return nil
}

type fakePool struct {
	workers  []models.WorkerHandle
	replaced []string
}

func (f *fakePool) Workers() []models.WorkerHandle {
	out := make([]models.WorkerHandle, len(f.workers))
	copy(out, f.workers)
	return out
}

func (f *fakePool) CheckHealth(now time.Time) []models.WorkerHandle { return nil }

func (f *fakePool) Replace(deadID string) (models.WorkerHandle, bool, error) {
	for i, w := range f.workers {
		if w.ID == deadID && w.State == models.DeadWorkerState {
			fresh := models.WorkerHandle{ID: "fresh-" + deadID, State: models.IdleWorkerState}
			f.workers[i] = fresh
			f.replaced = append(f.replaced, deadID)
			return fresh, true, nil
		}
	}
	return models.WorkerHandle{}, false, nil
}

type fakeTail struct {
	events []models.Event
	err    error
}

func (f *fakeTail) Events(fromID int64) ([]models.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Event
	for _, e := range f.events {
		if e.ID > fromID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestLoop(sched *fakeScheduler, pool *fakePool, tail *fakeTail) *reconciler.Loop {
	return reconciler.NewLoop(reconciler.Config{
		TickPeriod:     time.Second,
		StuckThreshold: 30 * time.Second,
	}, sched, pool, tail, &testLogger{})
}

func TestTick_OrphanedBeadIsRescheduled(t *testing.T) {
	now := time.Now()
	sched := &fakeScheduler{assignments: []models.Assignment{
		{WorkflowID: "wf", BeadID: "b1", WorkerID: "gone", Since: now},
	}}
	pool := &fakePool{} // no live worker backs the assignment
	loop := newTestLoop(sched, pool, &fakeTail{})

	loop.Tick(now)
	assert.Equal(t, []string{"b1"}, sched.rescheduled)
}

func TestTick_DeadWorkerIsRespawned(t *testing.T) {
	now := time.Now()
	pool := &fakePool{workers: []models.WorkerHandle{
		{ID: "w1", State: models.DeadWorkerState},
		{ID: "w2", State: models.IdleWorkerState},
	}}
	loop := newTestLoop(&fakeScheduler{}, pool, &fakeTail{})

	loop.Tick(now)
	assert.Equal(t, []string{"w1"}, pool.replaced)
}

func TestTick_StuckBeadIsCancelledAndRescheduled(t *testing.T) {
	now := time.Now()
	sched := &fakeScheduler{assignments: []models.Assignment{
		{WorkflowID: "wf", BeadID: "slow", WorkerID: "w1", Since: now.Add(-time.Minute)},
	}}
	pool := &fakePool{workers: []models.WorkerHandle{
		{ID: "w1", State: models.ClaimedWorkerState, AssignedBead: "slow"},
	}}
	loop := newTestLoop(sched, pool, &fakeTail{})

	loop.Tick(now)
	assert.Equal(t, []string{"slow"}, sched.cancelled)
	assert.Empty(t, sched.rescheduled)
}

func TestTick_ProgressEventsKeepBeadAlive(t *testing.T) {
	now := time.Now()
	sched := &fakeScheduler{assignments: []models.Assignment{
		{WorkflowID: "wf", BeadID: "busy", WorkerID: "w1", Since: now.Add(-time.Hour)},
	}}
	pool := &fakePool{workers: []models.WorkerHandle{
		{ID: "w1", State: models.ClaimedWorkerState, AssignedBead: "busy"},
	}}
	tail := &fakeTail{events: []models.Event{
		{ID: 1, Kind: models.BeadProgressEvent, BeadID: "busy"},
	}}
	loop := newTestLoop(sched, pool, tail)

	// The progress event is observed on this tick, so despite the old Since
	// the bead is not stuck.
	loop.Tick(now)
	assert.Empty(t, sched.cancelled)
}

// Re-emitting the same action while the first is still pending must be
// skipped; after the TTL the discrepancy is corrected again.
func TestTick_PendingActionsAreNotReapplied(t *testing.T) {
	now := time.Now()
	sched := &fakeScheduler{assignments: []models.Assignment{
		{WorkflowID: "wf", BeadID: "b1", WorkerID: "gone", Since: now},
	}}
	loop := newTestLoop(sched, &fakePool{}, &fakeTail{})

	loop.Tick(now)
	loop.Tick(now.Add(time.Second))
	assert.Equal(t, []string{"b1"}, sched.rescheduled, "pending dedupe must hold within the TTL")

	// Past the two-period TTL the action is re-emitted if still needed.
	loop.Tick(now.Add(4 * time.Second))
	assert.Equal(t, []string{"b1", "b1"}, sched.rescheduled)
}

func TestTick_QueryFailuresAreTolerated(t *testing.T) {
	t.Run("EventTailFailure", func(t *testing.T) {
		now := time.Now()
		sched := &fakeScheduler{assignments: []models.Assignment{
			{WorkflowID: "wf", BeadID: "b1", WorkerID: "gone", Since: now},
		}}
		tail := &fakeTail{err: errors.New("store unavailable")}
		loop := newTestLoop(sched, &fakePool{}, tail)

		loop.Tick(now)
		assert.Empty(t, sched.rescheduled, "tick ends early on tail failure")

		// Next tick succeeds once the store is back.
		tail.err = nil
		loop.Tick(now.Add(time.Second))
		assert.Equal(t, []string{"b1"}, sched.rescheduled)
	})

	t.Run("AssignmentsFailure", func(t *testing.T) {
		now := time.Now()
		pool := &fakePool{workers: []models.WorkerHandle{
			{ID: "w1", State: models.DeadWorkerState},
		}}
		sched := &fakeScheduler{assignmentsErr: errors.New("scheduler busy")}
		loop := newTestLoop(sched, pool, &fakeTail{})

		loop.Tick(now)
		assert.Empty(t, pool.replaced, "tick ends early on assignments failure")

		sched.assignmentsErr = nil
		loop.Tick(now.Add(time.Second))
		assert.Equal(t, []string{"w1"}, pool.replaced)
	})
}

func TestTick_ApplyFailureRetriesNextTick(t *testing.T) {
	now := time.Now()
	sched := &fakeScheduler{
		assignments: []models.Assignment{
			{WorkflowID: "wf", BeadID: "b1", WorkerID: "gone", Since: now},
		},
		rescheduleErr: errors.New("transient"),
	}
	loop := newTestLoop(sched, &fakePool{}, &fakeTail{})

	loop.Tick(now)
	assert.Empty(t, sched.rescheduled)

	// Failure did not mark the action pending, so the next tick retries.
	sched.rescheduleErr = nil
	loop.Tick(now.Add(time.Second))
	assert.Equal(t, []string{"b1"}, sched.rescheduled)
}

func TestTick_TerminalEventsClearProgress(t *testing.T) {
	now := time.Now()
	sched := &fakeScheduler{assignments: []models.Assignment{
		{WorkflowID: "wf", BeadID: "b1", WorkerID: "w1", Since: now.Add(-time.Hour)},
	}}
	pool := &fakePool{workers: []models.WorkerHandle{
		{ID: "w1", State: models.ClaimedWorkerState, AssignedBead: "b1"},
	}}
	tail := &fakeTail{events: []models.Event{
		{ID: 1, Kind: models.BeadProgressEvent, BeadID: "b1"},
		{ID: 2, Kind: models.BeadReleasedEvent, BeadID: "b1"},
	}}
	loop := newTestLoop(sched, pool, tail)

	// Progress then release on the same tail: the release clears the progress
	// record, so the stale Since governs and the bead counts as stuck.
	loop.Tick(now)
	assert.Equal(t, []string{"b1"}, sched.cancelled)
}

func TestCorrectiveActionKey(t *testing.T) {
	a := models.CorrectiveAction{Kind: models.RescheduleAction, WorkflowID: "wf", BeadID: "b1"}
	b := models.CorrectiveAction{Kind: models.RescheduleAction, WorkflowID: "wf", BeadID: "b1"}
	c := models.CorrectiveAction{Kind: models.CancelAndRescheduleAction, WorkflowID: "wf", BeadID: "b1"}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	require.NotEmpty(t, a.String())
}
