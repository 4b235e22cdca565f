package models

import "time"

type WorkflowStatus string

const (
	PendingWorkflowStatus   WorkflowStatus = "PENDING"
	RunningWorkflowStatus   WorkflowStatus = "RUNNING"
	CompletedWorkflowStatus WorkflowStatus = "COMPLETED"
	FailedWorkflowStatus    WorkflowStatus = "FAILED"
)

// Workflow is a named collection of beads plus the dependency edges over them.
type Workflow struct {
	ID        string         `json:"id" db:"id"`                 // Unique identifier
	Name      string         `json:"name" db:"name"`             // Descriptive name (e.g., "DataPipeline")
	Status    WorkflowStatus `json:"status" db:"status"`         // Aggregate state
	CreatedAt time.Time      `json:"created_at" db:"created_at"` // Creation timestamp
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"` // Last update timestamp
	Beads     []Bead         `json:"beads,omitempty"`            // Beads in the workflow (populated at runtime)
	Edges     []Edge         `json:"edges,omitempty"`            // Dependency edges (populated at runtime)
}
