package dag

import (
	"fmt"
	"strings"
)

// NodeNotFoundError is returned when an operation references an unknown bead.
type NodeNotFoundError struct {
	ID string
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found", e.ID)
}

// NodeAlreadyExistsError is returned when adding a duplicate bead id.
type NodeAlreadyExistsError struct {
	ID string
}

func (e *NodeAlreadyExistsError) Error() string {
	return fmt.Sprintf("node %q already exists", e.ID)
}

// EdgeAlreadyExistsError is returned when adding a duplicate edge.
type EdgeAlreadyExistsError struct {
	From, To string
}

func (e *EdgeAlreadyExistsError) Error() string {
	return fmt.Sprintf("edge %q -> %q already exists", e.From, e.To)
}

// EdgeNotFoundError is returned when removing an edge that is not present.
type EdgeNotFoundError struct {
	From, To string
}

func (e *EdgeNotFoundError) Error() string {
	return fmt.Sprintf("edge %q -> %q not found", e.From, e.To)
}

// SelfLoopError is returned when an edge would connect a bead to itself.
type SelfLoopError struct {
	ID string
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("self-loop on node %q", e.ID)
}

// CycleError reports the full set of nodes implicated in a would-be cycle,
// not merely that one exists.
type CycleError struct {
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected involving nodes: %s", strings.Join(e.Nodes, ", "))
}

// HasDependentsError is returned when removing a node that other nodes still
// depend on, without the force flag.
type HasDependentsError struct {
	ID         string
	Dependents []string
}

func (e *HasDependentsError) Error() string {
	return fmt.Sprintf("node %q has live dependents: %s", e.ID, strings.Join(e.Dependents, ", "))
}

// NotConnectedError is returned by ValidateConnected on a graph with more
// than one weakly connected component.
type NotConnectedError struct {
	Components int
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("graph is not connected: %d components", e.Components)
}
