package models

import "time"

// Checkpoint is a durable snapshot of engine state tagged with the last event
// id it reflects. Restart loads the latest valid checkpoint and replays only
// events after LastEventID.
type Checkpoint struct {
	ID          int64     `json:"id" db:"id"`
	LastEventID int64     `json:"last_event_id" db:"last_event_id"`
	State       []byte    `json:"state" db:"state"` // JSON-encoded CheckpointState
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// WorkflowCheckpoint captures one workflow: its graph, bead states, the
// completed set and current assignments.
type WorkflowCheckpoint struct {
	Name        string            `json:"name"`
	Status      WorkflowStatus    `json:"status"`
	Graph       GraphSnapshot     `json:"graph"`
	Beads       []Bead            `json:"beads"`
	Completed   []string          `json:"completed"`
	Assignments map[string]string `json:"assignments"` // bead id -> worker id
}

// CheckpointState is the serialized form of the snapshot.
type CheckpointState struct {
	Workflows         map[string]WorkflowCheckpoint `json:"workflows"`
	WorkerAssignments map[string]string             `json:"worker_assignments"` // worker id -> bead id
}
