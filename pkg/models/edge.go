package models

// DependencyKind classifies a dependency edge between two beads.
type DependencyKind string

const (
	// BlockingDependency gates readiness: the target cannot start until the
	// source completes.
	BlockingDependency DependencyKind = "BLOCKING"
	// PreferredOrder only influences tie-break ordering among ready beads.
	PreferredOrder DependencyKind = "PREFERRED"
)

// Edge is a directed dependency between two beads of the same workflow.
type Edge struct {
	From       string         `json:"from" db:"from_bead"`          // Prerequisite bead
	To         string         `json:"to" db:"to_bead"`              // Bead that depends on From
	Kind       DependencyKind `json:"kind" db:"kind"`               // Blocking or preferred
	WorkflowID string         `json:"workflow_id" db:"workflow_id"` // Owning workflow
}
