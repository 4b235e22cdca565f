package scheduler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lprior-repo/oya-sub002/pkg/models"
	"github.com/lprior-repo/oya-sub002/pkg/scheduler"
	"github.com/lprior-repo/oya-sub002/pkg/storage"
)

type testLogger struct{}

func (l *testLogger) Infof(format string, args ...interface{})  {}
func (l *testLogger) Warnf(format string, args ...interface{})  {}
func (l *testLogger) Errorf(format string, args ...interface{}) {}

func newTestScheduler(t *testing.T) (*scheduler.Scheduler, storage.Store) {
	t.Helper()
	store := storage.NewMockStore()
	s := scheduler.NewScheduler(store, &testLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Run(ctx) }()
	return s, store
}

func chainSubmission(name string, ids ...string) scheduler.Submission {
	sub := scheduler.Submission{Name: name}
	for _, id := range ids {
		sub.Beads = append(sub.Beads, models.Bead{ID: id, Title: id})
	}
	for i := 0; i+1 < len(ids); i++ {
		sub.Edges = append(sub.Edges, models.Edge{
			From: ids[i], To: ids[i+1], Kind: models.BlockingDependency,
		})
	}
	return sub
}

func readyIDs(t *testing.T, s *scheduler.Scheduler, wfID string) []string {
	t.Helper()
	ready, err := s.ReadyBeads(wfID)
	require.NoError(t, err)
	ids := make([]string, 0, len(ready))
	for _, b := range ready {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestSubmitWorkflow(t *testing.T) {
	t.Run("RegistersBeadsAndEdges", func(t *testing.T) {
		s, store := newTestScheduler(t)
		id, err := s.SubmitWorkflow(chainSubmission("deploy", "a", "b", "c"))
		require.NoError(t, err)
		require.NotEmpty(t, id)

		wf, err := s.Workflow(id)
		require.NoError(t, err)
		assert.Equal(t, "deploy", wf.Name)
		assert.Equal(t, models.PendingWorkflowStatus, wf.Status)
		assert.Len(t, wf.Beads, 3)
		assert.Len(t, wf.Edges, 2)

		events, err := store.Events(0)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		assert.Equal(t, models.WorkflowSubmittedEvent, events[0].Kind)
	})

	t.Run("CyclicSubmissionIsRejectedAtomically", func(t *testing.T) {
		s, store := newTestScheduler(t)
		sub := chainSubmission("cyclic", "a", "b", "c")
		sub.Edges = append(sub.Edges, models.Edge{
			From: "c", To: "a", Kind: models.BlockingDependency,
		})
		_, err := s.SubmitWorkflow(sub)
		require.Error(t, err)

		// Nothing was registered and nothing was logged.
		assert.Empty(t, s.Workflows())
		events, err := store.Events(0)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("DuplicateBeadIDRejected", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		sub := scheduler.Submission{
			Name:  "dup",
			Beads: []models.Bead{{ID: "a"}, {ID: "a"}},
		}
		_, err := s.SubmitWorkflow(sub)
		assert.Error(t, err)
		assert.Empty(t, s.Workflows())
	})
}

func TestReadyBeads(t *testing.T) {
	t.Run("ChainProgression", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		id, err := s.SubmitWorkflow(chainSubmission("chain", "a", "b", "c"))
		require.NoError(t, err)

		assert.Equal(t, []string{"a"}, readyIDs(t, s, id))

		require.NoError(t, s.MarkCompleted(id, "a"))
		assert.Equal(t, []string{"b"}, readyIDs(t, s, id))

		require.NoError(t, s.MarkCompleted(id, "b"))
		assert.Equal(t, []string{"c"}, readyIDs(t, s, id))

		require.NoError(t, s.MarkCompleted(id, "c"))
		assert.Empty(t, readyIDs(t, s, id))

		wf, err := s.Workflow(id)
		require.NoError(t, err)
		assert.Equal(t, models.CompletedWorkflowStatus, wf.Status)
	})

	t.Run("OrderedByPriorityThenPreferenceThenID", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		sub := scheduler.Submission{
			Name: "ordering",
			Beads: []models.Bead{
				{ID: "low", Priority: 1},
				{ID: "high", Priority: 9},
				{ID: "after", Priority: 1},
				{ID: "first", Priority: 1},
			},
			Edges: []models.Edge{
				// after prefers to run behind first, but is never blocked.
				{From: "first", To: "after", Kind: models.PreferredOrder},
			},
		}
		id, err := s.SubmitWorkflow(sub)
		require.NoError(t, err)

		// high priority first; then rank 0 beads by id; "after" last while
		// its preferred predecessor is incomplete.
		assert.Equal(t, []string{"high", "first", "low", "after"}, readyIDs(t, s, id))

		require.NoError(t, s.MarkCompleted(id, "first"))
		assert.Equal(t, []string{"high", "after", "low"}, readyIDs(t, s, id))
	})

	t.Run("AssignedBeadsExcluded", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		id, err := s.SubmitWorkflow(chainSubmission("solo", "a"))
		require.NoError(t, err)

		require.NoError(t, s.Assign(id, "a", "w1"))
		assert.Empty(t, readyIDs(t, s, id))
	})

	t.Run("UnknownWorkflow", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		_, err := s.ReadyBeads("ghost")
		var notFound *scheduler.WorkflowNotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestMarkCompleted_Idempotent(t *testing.T) {
	s, store := newTestScheduler(t)
	id, err := s.SubmitWorkflow(chainSubmission("once", "a", "b"))
	require.NoError(t, err)

	require.NoError(t, s.MarkCompleted(id, "a"))
	before, err := store.Events(0)
	require.NoError(t, err)

	require.NoError(t, s.MarkCompleted(id, "a"))
	after, err := store.Events(0)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "repeated completion must not re-emit")

	assert.Equal(t, []string{"b"}, readyIDs(t, s, id))
}

func TestAssign(t *testing.T) {
	t.Run("ConflictingWorkerRejected", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		id, err := s.SubmitWorkflow(chainSubmission("conflict", "a"))
		require.NoError(t, err)

		require.NoError(t, s.Assign(id, "a", "w1"))
		// Same worker again: no-op.
		require.NoError(t, s.Assign(id, "a", "w1"))

		err = s.Assign(id, "a", "w2")
		var conflict *scheduler.AlreadyAssignedError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "w1", conflict.WorkerID)
	})

	t.Run("TerminalBeadRejected", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		id, err := s.SubmitWorkflow(chainSubmission("done", "a"))
		require.NoError(t, err)

		require.NoError(t, s.MarkCompleted(id, "a"))
		err = s.Assign(id, "a", "w1")
		var terminal *scheduler.TerminalBeadError
		assert.ErrorAs(t, err, &terminal)
	})

	t.Run("MarksBeadRunning", func(t *testing.T) {
		s, _ := newTestScheduler(t)
		id, err := s.SubmitWorkflow(chainSubmission("run", "a"))
		require.NoError(t, err)

		require.NoError(t, s.Assign(id, "a", "w1"))
		wf, err := s.Workflow(id)
		require.NoError(t, err)
		assert.Equal(t, models.RunningWorkflowStatus, wf.Status)
		assert.Equal(t, models.RunningBeadStatus, wf.Beads[0].Status)
		assert.Equal(t, "w1", wf.Beads[0].Worker)
		assert.NotNil(t, wf.Beads[0].StartedAt)
	})
}

func TestReleaseAndReschedule(t *testing.T) {
	s, store := newTestScheduler(t)
	id, err := s.SubmitWorkflow(chainSubmission("release", "a"))
	require.NoError(t, err)

	require.NoError(t, s.Assign(id, "a", "w1"))
	require.NoError(t, s.Release(id, "a"))
	assert.Equal(t, []string{"a"}, readyIDs(t, s, id))

	// Releasing an unassigned bead is a no-op, so a duplicate corrective
	// action cannot double-apply.
	before, err := store.Events(0)
	require.NoError(t, err)
	require.NoError(t, s.Reschedule(id, "a"))
	after, err := store.Events(0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestCancelAndReschedule(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, err := s.SubmitWorkflow(chainSubmission("stuck", "a"))
	require.NoError(t, err)

	require.NoError(t, s.Assign(id, "a", "w1"))
	require.NoError(t, s.CancelAndReschedule(id, "a"))
	assert.Equal(t, []string{"a"}, readyIDs(t, s, id))

	// Idempotent: nothing in flight anymore.
	require.NoError(t, s.CancelAndReschedule(id, "a"))
	assert.Equal(t, []string{"a"}, readyIDs(t, s, id))
}

func TestCancel(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, err := s.SubmitWorkflow(chainSubmission("cancel", "a"))
	require.NoError(t, err)

	require.NoError(t, s.Cancel(id, "a"))
	wf, err := s.Workflow(id)
	require.NoError(t, err)
	assert.Equal(t, models.CancelledBeadStatus, wf.Beads[0].Status)

	// Repeat is a no-op; assignment afterwards is rejected.
	require.NoError(t, s.Cancel(id, "a"))
	err = s.Assign(id, "a", "w1")
	var terminal *scheduler.TerminalBeadError
	assert.ErrorAs(t, err, &terminal)
}

func TestMarkFailed(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, err := s.SubmitWorkflow(chainSubmission("fail", "a", "b"))
	require.NoError(t, err)

	require.NoError(t, s.Assign(id, "a", "w1"))
	require.NoError(t, s.MarkFailed(id, "a", "exit 1"))

	wf, err := s.Workflow(id)
	require.NoError(t, err)
	assert.Equal(t, models.FailedWorkflowStatus, wf.Status)
	assert.Equal(t, models.FailedBeadStatus, wf.Beads[0].Status)
	assert.Equal(t, "exit 1", wf.Beads[0].ErrorMsg)
}

func TestAddDependency(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, err := s.SubmitWorkflow(scheduler.Submission{
		Name:  "late-edge",
		Beads: []models.Bead{{ID: "a"}, {ID: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, readyIDs(t, s, id))

	require.NoError(t, s.AddDependency(id, "a", "b", models.BlockingDependency))
	assert.Equal(t, []string{"a"}, readyIDs(t, s, id))

	// Reverse edge would close a cycle.
	err = s.AddDependency(id, "b", "a", models.BlockingDependency)
	assert.Error(t, err)
}

func TestAssignments(t *testing.T) {
	s, _ := newTestScheduler(t)
	id, err := s.SubmitWorkflow(scheduler.Submission{
		Name:  "bindings",
		Beads: []models.Bead{{ID: "a"}, {ID: "b"}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Assign(id, "a", "w1"))
	require.NoError(t, s.Assign(id, "b", "w2"))

	bindings, err := s.Assignments()
	require.NoError(t, err)
	require.Len(t, bindings, 2)
	assert.Equal(t, "a", bindings[0].BeadID)
	assert.Equal(t, "w1", bindings[0].WorkerID)
	assert.Equal(t, id, bindings[0].WorkflowID)
	assert.False(t, bindings[0].Since.IsZero())
	assert.Equal(t, "b", bindings[1].BeadID)
}
