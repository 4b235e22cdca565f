package models

import "time"

type BeadStatus string

const (
	PendingBeadStatus   BeadStatus = "PENDING"
	ReadyBeadStatus     BeadStatus = "READY"
	RunningBeadStatus   BeadStatus = "RUNNING"
	CompletedBeadStatus BeadStatus = "COMPLETED"
	FailedBeadStatus    BeadStatus = "FAILED"
	CancelledBeadStatus BeadStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s BeadStatus) Terminal() bool {
	return s == CompletedBeadStatus || s == FailedBeadStatus || s == CancelledBeadStatus
}

// Bead is the atomic schedulable unit of a workflow.
type Bead struct {
	ID         string     `json:"id" db:"id"`                             // Unique identifier (e.g., "b1")
	WorkflowID string     `json:"workflow_id" db:"workflow_id"`           // Owning workflow
	Title      string     `json:"title" db:"title"`                       // Descriptive name (e.g., "FetchData")
	Status     BeadStatus `json:"status" db:"status"`                     // Lifecycle state
	Priority   int        `json:"priority" db:"priority"`                 // Higher runs earlier among ready beads
	Worker     string     `json:"worker,omitempty" db:"worker"`           // Assigned worker handle, empty if unassigned
	ErrorMsg   string     `json:"error,omitempty" db:"error_msg"`         // Last error message (optional)
	StartedAt  *time.Time `json:"started_at,omitempty" db:"started_at"`   // Nullable start time
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"` // Nullable end time
}
