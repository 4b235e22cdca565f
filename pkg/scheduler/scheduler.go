// Package scheduler owns the workflows: each workflow's dependency graph,
// completed set and assignments. It runs as an actor; all state is owned by
// the run loop goroutine and reached only through queued requests, processed
// in strict arrival order.
package scheduler

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lprior-repo/oya-sub002/pkg/dag"
	"github.com/lprior-repo/oya-sub002/pkg/models"
	"github.com/lprior-repo/oya-sub002/pkg/storage"
)

// Logger is the minimal logging surface the scheduler needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Submission is the validated node/edge list an external producer hands in.
type Submission struct {
	Name  string        `json:"name"`
	Beads []models.Bead `json:"beads"`
	Edges []models.Edge `json:"edges"`
}

type workflowState struct {
	id         string
	name       string
	status     models.WorkflowStatus
	graph      *dag.DAG
	beads      map[string]*models.Bead
	completed  map[string]bool
	assigned   map[string]string // bead id -> worker id
	assignedAt map[string]time.Time
	createdAt  time.Time
}

// Scheduler owns many workflows and computes ready beads from their graphs.
type Scheduler struct {
	store    storage.Store
	logger   Logger
	requests chan func()

	// Owned exclusively by the run loop.
	workflows map[string]*workflowState
	replaying bool
}

// NewScheduler returns a stopped scheduler; call Run to start processing.
func NewScheduler(store storage.Store, logger Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		logger:    logger,
		requests:  make(chan func(), 64),
		workflows: make(map[string]*workflowState),
	}
}

// Run processes queued requests until the context ends. Safe to re-enter
// after a supervisor restart.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-s.requests:
			req()
		}
	}
}

func (s *Scheduler) do(fn func()) {
	done := make(chan struct{})
	s.requests <- func() {
		defer close(done)
		fn()
	}
	<-done
}

// SubmitWorkflow registers a workflow from a validated submission. The
// registration is all-or-nothing: if any edge is invalid or would create a
// cycle, the whole submission is rejected and nothing is recorded.
func (s *Scheduler) SubmitWorkflow(sub Submission) (string, error) {
	var (
		id  string
		err error
	)
	s.do(func() {
		id, err = s.submit(uuid.NewString(), sub)
	})
	return id, err
}

func (s *Scheduler) submit(id string, sub Submission) (string, error) {
	g := dag.New()
	for _, b := range sub.Beads {
		if err := g.AddNode(b.ID); err != nil {
			return "", err
		}
	}
	for _, e := range sub.Edges {
		if err := g.AddEdge(e.From, e.To, e.Kind); err != nil {
			return "", err
		}
	}

	ws := &workflowState{
		id:         id,
		name:       sub.Name,
		status:     models.PendingWorkflowStatus,
		graph:      g,
		beads:      make(map[string]*models.Bead, len(sub.Beads)),
		completed:  make(map[string]bool),
		assigned:   make(map[string]string),
		assignedAt: make(map[string]time.Time),
		createdAt:  time.Now(),
	}
	for _, b := range sub.Beads {
		bead := b
		bead.WorkflowID = id
		bead.Status = models.PendingBeadStatus
		ws.beads[bead.ID] = &bead
	}
	s.workflows[id] = ws
	s.refreshReadiness(ws)

	payload, merr := json.Marshal(struct {
		WorkflowID string `json:"workflow_id"`
		Submission
	}{WorkflowID: id, Submission: sub})
	if merr != nil {
		delete(s.workflows, id)
		return "", errors.Wrap(merr, "encode submission")
	}
	s.emit(models.Event{Kind: models.WorkflowSubmittedEvent, Payload: string(payload)})
	for _, b := range sub.Beads {
		s.emit(models.Event{Kind: models.BeadCreatedEvent, BeadID: b.ID})
	}
	s.logger.Infof("Submitted workflow %q (%s) with %d beads, %d edges", sub.Name, id, len(sub.Beads), len(sub.Edges))
	return id, nil
}

// AddDependency inserts one edge into an existing workflow. Cycle and
// self-loop attempts are rejected with the implicated nodes.
func (s *Scheduler) AddDependency(workflowID, from, to string, kind models.DependencyKind) error {
	var err error
	s.do(func() {
		ws, ok := s.workflows[workflowID]
		if !ok {
			err = &WorkflowNotFoundError{ID: workflowID}
			return
		}
		if err = ws.graph.AddEdge(from, to, kind); err != nil {
			return
		}
		s.refreshReadiness(ws)
		payload, _ := json.Marshal(models.Edge{From: from, To: to, Kind: kind, WorkflowID: workflowID})
		s.emit(models.Event{Kind: models.DependencyAddedEvent, Payload: string(payload)})
	})
	return err
}

// ReadyBeads returns the unassigned, non-terminal beads whose blocking
// dependencies are all complete, ordered by priority (descending), then by
// preferred-order pressure (beads awaiting a preferred predecessor sort
// later), then by bead id.
func (s *Scheduler) ReadyBeads(workflowID string) ([]models.Bead, error) {
	var (
		out []models.Bead
		err error
	)
	s.do(func() {
		ws, ok := s.workflows[workflowID]
		if !ok {
			err = &WorkflowNotFoundError{ID: workflowID}
			return
		}
		ready := ws.graph.ReadyNodes(ws.completed)
		type candidate struct {
			bead models.Bead
			rank int
		}
		var cands []candidate
		for _, id := range ready {
			b := ws.beads[id]
			if b == nil || b.Status.Terminal() {
				continue
			}
			if _, taken := ws.assigned[id]; taken {
				continue
			}
			cands = append(cands, candidate{bead: *b, rank: s.preferredRank(ws, id)})
		}
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].bead.Priority != cands[j].bead.Priority {
				return cands[i].bead.Priority > cands[j].bead.Priority
			}
			if cands[i].rank != cands[j].rank {
				return cands[i].rank < cands[j].rank
			}
			return cands[i].bead.ID < cands[j].bead.ID
		})
		for _, c := range cands {
			out = append(out, c.bead)
		}
	})
	return out, err
}

// preferredRank counts incoming preferred-order edges from beads not yet
// completed. Preferred edges never block; they only push a bead behind its
// preferred predecessors in the ready ordering.
func (s *Scheduler) preferredRank(ws *workflowState, beadID string) int {
	rank := 0
	for _, e := range ws.graph.Edges() {
		if e.To == beadID && e.Kind == models.PreferredOrder && !ws.completed[e.From] {
			rank++
		}
	}
	return rank
}

// MarkCompleted moves a bead into the workflow's completed set. Repeating
// the call for an already completed bead is a benign no-op.
func (s *Scheduler) MarkCompleted(workflowID, beadID string) error {
	var err error
	s.do(func() {
		ws, b, ferr := s.find(workflowID, beadID)
		if ferr != nil {
			err = ferr
			return
		}
		if ws.completed[beadID] {
			return // idempotent
		}
		ws.completed[beadID] = true
		delete(ws.assigned, beadID)
		delete(ws.assignedAt, beadID)
		now := time.Now()
		b.Status = models.CompletedBeadStatus
		b.Worker = ""
		b.FinishedAt = &now
		s.refreshReadiness(ws)
		s.refreshWorkflowStatus(ws)
		s.emit(models.Event{Kind: models.BeadCompletedEvent, BeadID: beadID})
	})
	return err
}

// MarkFailed records a terminal failure for a bead.
func (s *Scheduler) MarkFailed(workflowID, beadID, errorMsg string) error {
	var err error
	s.do(func() {
		ws, b, ferr := s.find(workflowID, beadID)
		if ferr != nil {
			err = ferr
			return
		}
		if b.Status == models.FailedBeadStatus {
			return // idempotent
		}
		delete(ws.assigned, beadID)
		delete(ws.assignedAt, beadID)
		now := time.Now()
		b.Status = models.FailedBeadStatus
		b.Worker = ""
		b.ErrorMsg = errorMsg
		b.FinishedAt = &now
		ws.status = models.FailedWorkflowStatus
		s.emit(models.Event{Kind: models.BeadFailedEvent, BeadID: beadID, Payload: errorMsg})
	})
	return err
}

// Assign binds a ready bead to a worker. At most one worker holds a bead at
// a time; re-assigning to the same worker is a no-op.
func (s *Scheduler) Assign(workflowID, beadID, workerID string) error {
	var err error
	s.do(func() {
		ws, b, ferr := s.find(workflowID, beadID)
		if ferr != nil {
			err = ferr
			return
		}
		if b.Status.Terminal() {
			err = &TerminalBeadError{BeadID: beadID, Status: string(b.Status)}
			return
		}
		if holder, taken := ws.assigned[beadID]; taken {
			if holder == workerID {
				return // idempotent
			}
			err = &AlreadyAssignedError{BeadID: beadID, WorkerID: holder}
			return
		}
		now := time.Now()
		ws.assigned[beadID] = workerID
		ws.assignedAt[beadID] = now
		b.Status = models.RunningBeadStatus
		b.Worker = workerID
		if b.StartedAt == nil {
			b.StartedAt = &now
		}
		if ws.status == models.PendingWorkflowStatus {
			ws.status = models.RunningWorkflowStatus
		}
		payload, _ := json.Marshal(map[string]string{"worker_id": workerID})
		s.emit(models.Event{Kind: models.BeadAssignedEvent, BeadID: beadID, Payload: string(payload)})
	})
	return err
}

// Release returns an assigned bead to the ready pool, e.g. after a worker
// failure. Releasing an unassigned bead is a no-op.
func (s *Scheduler) Release(workflowID, beadID string) error {
	var err error
	s.do(func() {
		err = s.release(workflowID, beadID, models.BeadReleasedEvent)
	})
	return err
}

// Reschedule is the corrective action for an orphaned bead: identical to
// Release and equally idempotent, so re-emitting it before the first apply
// takes effect cannot double-apply.
func (s *Scheduler) Reschedule(workflowID, beadID string) error {
	var err error
	s.do(func() {
		err = s.release(workflowID, beadID, models.BeadReleasedEvent)
	})
	return err
}

// CancelAndReschedule cancels the in-flight attempt of a stuck bead and
// returns it to the ready pool. The cancellation marks the in-flight work
// non-authoritative; it does not guarantee instant physical stop.
func (s *Scheduler) CancelAndReschedule(workflowID, beadID string) error {
	var err error
	s.do(func() {
		ws, b, ferr := s.find(workflowID, beadID)
		if ferr != nil {
			err = ferr
			return
		}
		if _, taken := ws.assigned[beadID]; !taken && b.Status != models.RunningBeadStatus {
			return // nothing in flight: idempotent
		}
		delete(ws.assigned, beadID)
		delete(ws.assignedAt, beadID)
		b.Worker = ""
		s.emit(models.Event{Kind: models.BeadCancelledEvent, BeadID: beadID})
		b.Status = models.ReadyBeadStatus
		s.refreshReadiness(ws)
	})
	return err
}

// Cancel terminally cancels a bead that has not finished.
func (s *Scheduler) Cancel(workflowID, beadID string) error {
	var err error
	s.do(func() {
		ws, b, ferr := s.find(workflowID, beadID)
		if ferr != nil {
			err = ferr
			return
		}
		if b.Status == models.CancelledBeadStatus {
			return // idempotent
		}
		if b.Status.Terminal() {
			err = &TerminalBeadError{BeadID: beadID, Status: string(b.Status)}
			return
		}
		delete(ws.assigned, beadID)
		delete(ws.assignedAt, beadID)
		now := time.Now()
		b.Status = models.CancelledBeadStatus
		b.Worker = ""
		b.FinishedAt = &now
		s.emit(models.Event{Kind: models.BeadCancelledEvent, BeadID: beadID, Payload: `{"terminal":true}`})
	})
	return err
}

// RecordProgress appends a progress event for a running bead. The
// reconciliation loop uses these to detect stuck beads.
func (s *Scheduler) RecordProgress(workflowID, beadID, note string) error {
	var err error
	s.do(func() {
		_, _, ferr := s.find(workflowID, beadID)
		if ferr != nil {
			err = ferr
			return
		}
		s.emit(models.Event{Kind: models.BeadProgressEvent, BeadID: beadID, Payload: note})
	})
	return err
}

// Assignments returns the declared bead-to-worker bindings across all
// workflows, sorted by bead id.
func (s *Scheduler) Assignments() ([]models.Assignment, error) {
	var out []models.Assignment
	s.do(func() {
		for _, ws := range s.workflows {
			for beadID, workerID := range ws.assigned {
				out = append(out, models.Assignment{
					WorkflowID: ws.id,
					BeadID:     beadID,
					WorkerID:   workerID,
					Since:      ws.assignedAt[beadID],
				})
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].BeadID < out[j].BeadID })
	return out, nil
}

// Workflow returns a copied view of one workflow with beads and edges.
func (s *Scheduler) Workflow(workflowID string) (models.Workflow, error) {
	var (
		wf  models.Workflow
		err error
	)
	s.do(func() {
		ws, ok := s.workflows[workflowID]
		if !ok {
			err = &WorkflowNotFoundError{ID: workflowID}
			return
		}
		wf = s.describe(ws)
	})
	return wf, err
}

// Workflows returns copied views of all workflows, sorted by id.
func (s *Scheduler) Workflows() []models.Workflow {
	var out []models.Workflow
	s.do(func() {
		for _, ws := range s.workflows {
			out = append(out, s.describe(ws))
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Layout computes force-directed position hints for one workflow's graph.
func (s *Scheduler) Layout(workflowID string, iterations int) (map[string]dag.Position, error) {
	var (
		pos map[string]dag.Position
		err error
	)
	s.do(func() {
		ws, ok := s.workflows[workflowID]
		if !ok {
			err = &WorkflowNotFoundError{ID: workflowID}
			return
		}
		pos = ws.graph.Layout(iterations)
	})
	return pos, err
}

func (s *Scheduler) describe(ws *workflowState) models.Workflow {
	wf := models.Workflow{
		ID:        ws.id,
		Name:      ws.name,
		Status:    ws.status,
		CreatedAt: ws.createdAt,
		UpdatedAt: time.Now(),
		Edges:     ws.graph.Edges(),
	}
	for _, id := range ws.graph.Nodes() {
		if b := ws.beads[id]; b != nil {
			wf.Beads = append(wf.Beads, *b)
		}
	}
	for i := range wf.Edges {
		wf.Edges[i].WorkflowID = ws.id
	}
	return wf
}

func (s *Scheduler) find(workflowID, beadID string) (*workflowState, *models.Bead, error) {
	ws, ok := s.workflows[workflowID]
	if !ok {
		return nil, nil, &WorkflowNotFoundError{ID: workflowID}
	}
	b, ok := ws.beads[beadID]
	if !ok {
		return nil, nil, &BeadNotFoundError{WorkflowID: workflowID, BeadID: beadID}
	}
	return ws, b, nil
}

func (s *Scheduler) release(workflowID, beadID string, kind models.EventKind) error {
	ws, b, err := s.find(workflowID, beadID)
	if err != nil {
		return err
	}
	if _, taken := ws.assigned[beadID]; !taken {
		return nil // idempotent
	}
	delete(ws.assigned, beadID)
	delete(ws.assignedAt, beadID)
	if !b.Status.Terminal() {
		b.Status = models.ReadyBeadStatus
	}
	b.Worker = ""
	s.emit(models.Event{Kind: kind, BeadID: beadID})
	s.refreshReadiness(ws)
	return nil
}

// refreshReadiness recomputes Pending/Ready for non-terminal, unassigned
// beads from the graph and the completed set.
func (s *Scheduler) refreshReadiness(ws *workflowState) {
	ready := make(map[string]bool)
	for _, id := range ws.graph.ReadyNodes(ws.completed) {
		ready[id] = true
	}
	for id, b := range ws.beads {
		if b.Status.Terminal() || b.Status == models.RunningBeadStatus {
			continue
		}
		if ready[id] {
			b.Status = models.ReadyBeadStatus
		} else {
			b.Status = models.PendingBeadStatus
		}
	}
}

func (s *Scheduler) refreshWorkflowStatus(ws *workflowState) {
	for id := range ws.beads {
		if !ws.completed[id] {
			return
		}
	}
	ws.status = models.CompletedWorkflowStatus
}

// emit appends a lifecycle event unless a replay is in progress.
func (s *Scheduler) emit(e models.Event) {
	if s.replaying || s.store == nil {
		return
	}
	if _, err := s.store.AppendEvent(e); err != nil {
		s.logger.Errorf("Failed to append %s event for bead %q: %v", e.Kind, e.BeadID, err)
	}
}
