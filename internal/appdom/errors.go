package appdom

import "fmt"

// NodeNotFoundError is returned when an id does not resolve to a node.
type NodeNotFoundError struct {
	ID NodeID
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found", e.ID)
}

// TypeMismatchError is returned by typed lookups.
type TypeMismatchError struct {
	ID   NodeID
	Want NodeType
	Got  NodeType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("node %q is a %s, expected %s", e.ID, e.Got, e.Want)
}

// InvariantError reports a mutation rejected because it would break the
// document's structure.
type InvariantError struct {
	Op     string
	ID     NodeID
	Reason string
}

func (e *InvariantError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Op, e.ID, e.Reason)
}

func invariantf(op string, id NodeID, format string, args ...any) error {
	return &InvariantError{Op: op, ID: id, Reason: fmt.Sprintf(format, args...)}
}
