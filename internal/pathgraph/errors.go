package pathgraph

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle matches any *CycleError via errors.Is.
	ErrCycle = errors.New("cycle")

	// ErrUnknownNode matches any *UnknownNodeError via errors.Is.
	ErrUnknownNode = errors.New("unknown node")

	// ErrDuplicateNode is returned when a node ID is already present.
	ErrDuplicateNode = errors.New("duplicate node")
)

// CycleError reports that inserting From -> To would close a directed cycle.
type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("edge %s -> %s would create a cycle", e.From, e.To)
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// UnknownNodeError reports a reference to a node that is not in the path.
type UnknownNodeError struct {
	PathID string
	ID     string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("node %q not found in path %q", e.ID, e.PathID)
}

func (e *UnknownNodeError) Is(target error) bool { return target == ErrUnknownNode }
