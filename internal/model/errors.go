package model

import (
	"fmt"
	"strings"
)

// ValidationError reports a bad container or group definition. It is local
// to the definition it names and never aborts unrelated definitions.
type ValidationError struct {
	// Field is the definition key that violated an invariant.
	Field string

	// Reason explains the violation.
	Reason string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid definition: %s: %s", e.Field, e.Reason)
}

// CycleError reports a dependency cycle discovered while building the
// graph. The cycle lists each participating container exactly once, in
// dependency order. A graph with a cycle is not partially usable: no
// runtime operation proceeds.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// UnresolvedDependencyError reports a net reference to a container that is
// not part of the registered set. The edge is never silently skipped.
type UnresolvedDependencyError struct {
	// Container is the definition declaring the reference.
	Container string

	// Target is the missing container name.
	Target string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("container %q: net target %q is not registered", e.Container, e.Target)
}

// DependencyUnmetError reports that a container was not started because a
// dependency never reached running. It is scoped to one dependency chain;
// unrelated chains continue.
type DependencyUnmetError struct {
	// Container is the container that was skipped.
	Container string

	// Dependency is the container that failed or never became ready.
	Dependency string

	// Cause is the dependency's failure, when known.
	Cause error
}

func (e *DependencyUnmetError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("container %q not started: dependency %q not running: %v",
			e.Container, e.Dependency, e.Cause)
	}
	return fmt.Sprintf("container %q not started: dependency %q not running",
		e.Container, e.Dependency)
}

func (e *DependencyUnmetError) Unwrap() error {
	return e.Cause
}

// ConcurrentOperationError rejects a second in-flight transition on the
// same container name. The first operation is unaffected; state is never
// corrupted by interleaving.
type ConcurrentOperationError struct {
	Container string
}

func (e *ConcurrentOperationError) Error() string {
	return fmt.Sprintf("container %q: another operation is already in progress", e.Container)
}

// DuplicateGroupError reports an attempt to register a group name twice.
type DuplicateGroupError struct {
	Group string
}

func (e *DuplicateGroupError) Error() string {
	return fmt.Sprintf("group %q is already defined", e.Group)
}

// DuplicateContainerError reports an attempt to register a container name
// that exists anywhere in the registry. Names are global, not per group.
type DuplicateContainerError struct {
	Container string

	// Group is the group already holding the name (empty for ungrouped).
	Group string
}

func (e *DuplicateContainerError) Error() string {
	if e.Group != "" {
		return fmt.Sprintf("container %q is already defined in group %q", e.Container, e.Group)
	}
	return fmt.Sprintf("container %q is already defined", e.Container)
}

// UnknownGroupError reports a reference to a group that was never
// registered.
type UnknownGroupError struct {
	Group string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("group %q is not defined", e.Group)
}

// UnknownContainerError reports a reference to a container definition that
// was never registered.
type UnknownContainerError struct {
	Container string
}

func (e *UnknownContainerError) Error() string {
	return fmt.Sprintf("container %q is not defined", e.Container)
}
