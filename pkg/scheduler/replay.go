package scheduler

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/lprior-repo/oya-sub002/pkg/dag"
	"github.com/lprior-repo/oya-sub002/pkg/models"
)

// CheckpointWorkflows captures every workflow for a durable checkpoint.
func (s *Scheduler) CheckpointWorkflows() map[string]models.WorkflowCheckpoint {
	out := make(map[string]models.WorkflowCheckpoint)
	s.do(func() {
		for id, ws := range s.workflows {
			cp := models.WorkflowCheckpoint{
				Name:        ws.name,
				Status:      ws.status,
				Graph:       ws.graph.ToSnapshot(),
				Assignments: make(map[string]string, len(ws.assigned)),
			}
			for _, nid := range ws.graph.Nodes() {
				if b := ws.beads[nid]; b != nil {
					cp.Beads = append(cp.Beads, *b)
				}
			}
			for bid := range ws.completed {
				cp.Completed = append(cp.Completed, bid)
			}
			for bid, wid := range ws.assigned {
				cp.Assignments[bid] = wid
			}
			out[id] = cp
		}
	})
	return out
}

// Restore rebuilds all workflow state from a checkpoint, replacing whatever
// the scheduler currently holds. Assignments are restored as declared state;
// the reconciliation loop re-binds or reschedules them against the live
// worker pool.
func (s *Scheduler) Restore(workflows map[string]models.WorkflowCheckpoint) error {
	var err error
	s.do(func() {
		restored := make(map[string]*workflowState, len(workflows))
		for id, cp := range workflows {
			g, gerr := dag.FromSnapshot(cp.Graph)
			if gerr != nil {
				err = errors.Wrapf(gerr, "restore workflow %s graph", id)
				return
			}
			ws := &workflowState{
				id:         id,
				name:       cp.Name,
				status:     cp.Status,
				graph:      g,
				beads:      make(map[string]*models.Bead, len(cp.Beads)),
				completed:  make(map[string]bool, len(cp.Completed)),
				assigned:   make(map[string]string, len(cp.Assignments)),
				assignedAt: make(map[string]time.Time, len(cp.Assignments)),
				createdAt:  time.Now(),
			}
			for _, b := range cp.Beads {
				bead := b
				ws.beads[bead.ID] = &bead
			}
			for _, bid := range cp.Completed {
				ws.completed[bid] = true
			}
			now := time.Now()
			for bid, wid := range cp.Assignments {
				ws.assigned[bid] = wid
				ws.assignedAt[bid] = now
			}
			restored[id] = ws
		}
		s.workflows = restored
	})
	return err
}

// Replay applies events recorded after the checkpoint, in id order, without
// re-emitting them. Unknown or stale references are logged and skipped:
// replay must converge on the log's final state, not fail halfway.
func (s *Scheduler) Replay(events []models.Event) error {
	var err error
	s.do(func() {
		s.replaying = true
		defer func() { s.replaying = false }()
		for _, e := range events {
			if aerr := s.applyEvent(e); aerr != nil {
				s.logger.Warnf("Replay skipped event %d (%s): %v", e.ID, e.Kind, aerr)
			}
		}
	})
	return err
}

func (s *Scheduler) applyEvent(e models.Event) error {
	switch e.Kind {
	case models.WorkflowSubmittedEvent:
		var payload struct {
			WorkflowID string `json:"workflow_id"`
			Submission
		}
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return errors.Wrap(err, "decode submission")
		}
		if _, exists := s.workflows[payload.WorkflowID]; exists {
			return nil // checkpoint already carries it
		}
		_, err := s.submit(payload.WorkflowID, payload.Submission)
		return err
	case models.DependencyAddedEvent:
		var edge models.Edge
		if err := json.Unmarshal([]byte(e.Payload), &edge); err != nil {
			return errors.Wrap(err, "decode edge")
		}
		ws, ok := s.workflows[edge.WorkflowID]
		if !ok {
			return &WorkflowNotFoundError{ID: edge.WorkflowID}
		}
		if err := ws.graph.AddEdge(edge.From, edge.To, edge.Kind); err != nil {
			if _, dup := err.(*dag.EdgeAlreadyExistsError); dup {
				return nil
			}
			return err
		}
		s.refreshReadiness(ws)
		return nil
	case models.BeadAssignedEvent:
		var payload struct {
			WorkerID string `json:"worker_id"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			return errors.Wrap(err, "decode assignment")
		}
		ws, b, err := s.findAny(e.BeadID)
		if err != nil {
			return err
		}
		ws.assigned[e.BeadID] = payload.WorkerID
		ws.assignedAt[e.BeadID] = e.Timestamp
		b.Status = models.RunningBeadStatus
		b.Worker = payload.WorkerID
		return nil
	case models.BeadReleasedEvent:
		ws, b, err := s.findAny(e.BeadID)
		if err != nil {
			return err
		}
		delete(ws.assigned, e.BeadID)
		delete(ws.assignedAt, e.BeadID)
		if !b.Status.Terminal() {
			b.Status = models.ReadyBeadStatus
		}
		b.Worker = ""
		return nil
	case models.BeadCompletedEvent:
		ws, b, err := s.findAny(e.BeadID)
		if err != nil {
			return err
		}
		ws.completed[e.BeadID] = true
		delete(ws.assigned, e.BeadID)
		delete(ws.assignedAt, e.BeadID)
		b.Status = models.CompletedBeadStatus
		b.Worker = ""
		s.refreshReadiness(ws)
		s.refreshWorkflowStatus(ws)
		return nil
	case models.BeadFailedEvent:
		ws, b, err := s.findAny(e.BeadID)
		if err != nil {
			return err
		}
		delete(ws.assigned, e.BeadID)
		delete(ws.assignedAt, e.BeadID)
		b.Status = models.FailedBeadStatus
		b.ErrorMsg = e.Payload
		b.Worker = ""
		ws.status = models.FailedWorkflowStatus
		return nil
	case models.BeadCancelledEvent:
		ws, b, err := s.findAny(e.BeadID)
		if err != nil {
			return err
		}
		delete(ws.assigned, e.BeadID)
		delete(ws.assignedAt, e.BeadID)
		b.Worker = ""
		var payload struct {
			Terminal bool `json:"terminal"`
		}
		_ = json.Unmarshal([]byte(e.Payload), &payload)
		if payload.Terminal {
			b.Status = models.CancelledBeadStatus
		} else if !b.Status.Terminal() {
			b.Status = models.ReadyBeadStatus
		}
		return nil
	default:
		// Created/progress/worker/checkpoint events carry no scheduler state.
		return nil
	}
}

// findAny locates a bead across workflows; bead ids are unique per workflow
// and events do not carry the workflow id.
func (s *Scheduler) findAny(beadID string) (*workflowState, *models.Bead, error) {
	for _, ws := range s.workflows {
		if b, ok := ws.beads[beadID]; ok {
			return ws, b, nil
		}
	}
	return nil, nil, &BeadNotFoundError{BeadID: beadID}
}
