package scheduler

import "fmt"

// WorkflowNotFoundError is returned when an operation references an unknown
// workflow.
type WorkflowNotFoundError struct {
	ID string
}

func (e *WorkflowNotFoundError) Error() string {
	return fmt.Sprintf("workflow %q not found", e.ID)
}

// BeadNotFoundError is returned when an operation references an unknown bead.
type BeadNotFoundError struct {
	WorkflowID string
	BeadID     string
}

func (e *BeadNotFoundError) Error() string {
	return fmt.Sprintf("bead %q not found in workflow %q", e.BeadID, e.WorkflowID)
}

// AlreadyAssignedError is returned when assigning a bead that another worker
// already holds.
type AlreadyAssignedError struct {
	BeadID   string
	WorkerID string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("bead %q is already assigned to worker %q", e.BeadID, e.WorkerID)
}

// TerminalBeadError is returned when mutating a bead that already reached a
// terminal state.
type TerminalBeadError struct {
	BeadID string
	Status string
}

func (e *TerminalBeadError) Error() string {
	return fmt.Sprintf("bead %q is terminal (%s)", e.BeadID, e.Status)
}
