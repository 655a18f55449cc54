package model

import (
	"fmt"
	"strings"
)

// ContainerStatus represents the lifecycle state of a managed container.
// Transitions are driven exclusively by the lifecycle engine:
//
//	Undefined → Created → Starting → Running → Stopping → Stopped → Removed
//
// Any runtime operation may fail and move the container to Failed instead
// of advancing. Failed is terminal for that operation pass, but not for the
// container: a later operator-triggered run may retry from Failed toward
// the same target state.
type ContainerStatus string

const (
	// StatusUndefined means the container has a definition but no runtime
	// object yet.
	StatusUndefined ContainerStatus = "undefined"

	// StatusCreated means the runtime object exists but has not started.
	StatusCreated ContainerStatus = "created"

	// StatusStarting means a start call was issued and readiness has not
	// yet been confirmed.
	StatusStarting ContainerStatus = "starting"

	// StatusRunning means the container is up and its readiness was
	// confirmed via inspect.
	StatusRunning ContainerStatus = "running"

	// StatusStopping means a stop call is in flight.
	StatusStopping ContainerStatus = "stopping"

	// StatusStopped means the container exited or was stopped; its runtime
	// object still exists.
	StatusStopped ContainerStatus = "stopped"

	// StatusFailed means the last operation on this container failed. The
	// causing error is retained and retrievable through the registry.
	StatusFailed ContainerStatus = "failed"

	// StatusRemoved means the runtime object was removed. The definition
	// remains registered.
	StatusRemoved ContainerStatus = "removed"
)

// String returns the string representation, satisfying fmt.Stringer.
func (s ContainerStatus) String() string {
	return string(s)
}

// IsValid checks whether the value is one of the defined statuses.
func (s ContainerStatus) IsValid() bool {
	switch s {
	case StatusUndefined, StatusCreated, StatusStarting, StatusRunning,
		StatusStopping, StatusStopped, StatusFailed, StatusRemoved:
		return true
	default:
		return false
	}
}

// ParseContainerStatus converts a string to a ContainerStatus.
func ParseContainerStatus(s string) (ContainerStatus, error) {
	status := ContainerStatus(strings.ToLower(s))
	if !status.IsValid() {
		return "", fmt.Errorf("invalid container status: %q", s)
	}
	return status, nil
}
