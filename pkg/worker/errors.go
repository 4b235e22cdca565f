package worker

import (
	"fmt"

	"github.com/lprior-repo/oya-sub002/pkg/models"
)

// WorkerNotFoundError is returned when an operation references an unknown or
// already removed worker handle.
type WorkerNotFoundError struct {
	ID string
}

func (e *WorkerNotFoundError) Error() string {
	return fmt.Sprintf("worker %q not found", e.ID)
}

// AlreadyClaimedError is returned when claiming a worker that is not Idle.
type AlreadyClaimedError struct {
	ID    string
	State models.WorkerState
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("worker %q cannot be claimed: state is %s", e.ID, e.State)
}

// BeadAlreadyAssignedError is returned when a claim would give a bead to a
// second worker.
type BeadAlreadyAssignedError struct {
	BeadID   string
	WorkerID string
}

func (e *BeadAlreadyAssignedError) Error() string {
	return fmt.Sprintf("bead %q is already assigned to worker %q", e.BeadID, e.WorkerID)
}

// NotClaimedError is returned when releasing a worker that is not Claimed.
type NotClaimedError struct {
	ID    string
	State models.WorkerState
}

func (e *NotClaimedError) Error() string {
	return fmt.Sprintf("worker %q cannot be released: state is %s", e.ID, e.State)
}
