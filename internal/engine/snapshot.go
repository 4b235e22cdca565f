package engine

import (
	"time"

	"github.com/lprior-repo/oya-sub002/pkg/dag"
	"github.com/lprior-repo/oya-sub002/pkg/models"
)

const layoutIterations = 50

// WorkflowView is one workflow plus optional force-directed layout hints.
type WorkflowView struct {
	Workflow  models.Workflow         `json:"workflow"`
	Positions map[string]dag.Position `json:"positions,omitempty"`
}

// Snapshot is the read-only view exposed to visualization and dashboard
// consumers. The core renders nothing; consumers own presentation.
type Snapshot struct {
	TakenAt   time.Time             `json:"taken_at"`
	Workflows []WorkflowView        `json:"workflows"`
	Workers   []models.WorkerHandle `json:"workers"`
	Stats     models.PoolStats      `json:"stats"`
}

// Snapshot captures the current graph, bead states, worker handles and
// aggregate stats as copies; holding the result never blocks the engine.
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		TakenAt: time.Now(),
		Workers: e.pool.Workers(),
		Stats:   e.pool.Stats(),
	}
	for _, wf := range e.sched.Workflows() {
		view := WorkflowView{Workflow: wf}
		if pos, err := e.sched.Layout(wf.ID, layoutIterations); err == nil {
			view.Positions = pos
		}
		snap.Workflows = append(snap.Workflows, view)
	}
	return snap
}
