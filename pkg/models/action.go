package models

import "fmt"

type ActionKind string

const (
	RescheduleAction          ActionKind = "RESCHEDULE"
	RespawnWorkerAction       ActionKind = "RESPAWN_WORKER"
	CancelAndRescheduleAction ActionKind = "CANCEL_AND_RESCHEDULE"
)

// CorrectiveAction is an idempotent command emitted by the reconciliation
// loop. Re-applying the same action before the first takes effect is a no-op.
type CorrectiveAction struct {
	Kind       ActionKind `json:"kind"`
	BeadID     string     `json:"bead_id,omitempty"`
	WorkflowID string     `json:"workflow_id,omitempty"`
	WorkerID   string     `json:"worker_id,omitempty"`
}

// Key identifies the action for dedupe purposes: the same discrepancy
// observed on consecutive ticks yields the same key.
func (a CorrectiveAction) Key() string {
	return fmt.Sprintf("%s:%s:%s", a.Kind, a.BeadID, a.WorkerID)
}

func (a CorrectiveAction) String() string {
	switch a.Kind {
	case RespawnWorkerAction:
		return fmt.Sprintf("respawn worker %s", a.WorkerID)
	case CancelAndRescheduleAction:
		return fmt.Sprintf("cancel and reschedule bead %s", a.BeadID)
	default:
		return fmt.Sprintf("reschedule bead %s", a.BeadID)
	}
}
