package models

import "time"

type EventKind string

const (
	WorkflowSubmittedEvent EventKind = "WORKFLOW_SUBMITTED"
	DependencyAddedEvent   EventKind = "DEPENDENCY_ADDED"

	BeadCreatedEvent      EventKind = "BEAD_CREATED"
	BeadStateChangedEvent EventKind = "BEAD_STATE_CHANGED"
	BeadAssignedEvent     EventKind = "BEAD_ASSIGNED"
	BeadReleasedEvent     EventKind = "BEAD_RELEASED"
	BeadCompletedEvent    EventKind = "BEAD_COMPLETED"
	BeadFailedEvent       EventKind = "BEAD_FAILED"
	BeadCancelledEvent    EventKind = "BEAD_CANCELLED"
	BeadProgressEvent     EventKind = "BEAD_PROGRESS"
	WorkerSpawnedEvent    EventKind = "WORKER_SPAWNED"
	WorkerDiedEvent       EventKind = "WORKER_DIED"
	CheckpointSavedEvent  EventKind = "CHECKPOINT_SAVED"
)

// Event is one append-only record of the durable log. IDs are assigned by the
// store and increase monotonically.
type Event struct {
	ID        int64     `json:"id" db:"id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	BeadID    string    `json:"bead_id" db:"bead_id"` // Empty for worker/checkpoint events
	Kind      EventKind `json:"kind" db:"kind"`
	Payload   string    `json:"payload,omitempty" db:"payload"` // JSON-encoded detail
}
