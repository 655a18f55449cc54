// Package runtime defines the capability interface the lifecycle engine
// uses to drive a container runtime, together with the Docker Engine
// implementation of it.
//
// The engine never talks to the Docker SDK directly: every runtime effect
// goes through the Gateway interface so tests can substitute a fake and
// the transient/permanent error split stays in one place.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// Handle is the opaque identifier for a live runtime object, returned by
// Create and owned by the lifecycle engine. At most one live handle exists
// per container name at any time.
type Handle string

// InspectResult is the runtime's view of a container, used for readiness
// polling.
type InspectResult struct {
	// Running reports whether the container's main process is up.
	Running bool

	// ExitCode is the process exit code when the container has stopped.
	ExitCode int
}

// Gateway is the narrow capability interface over a container runtime. It
// carries no business logic: ordering, retries, and state transitions all
// live in the engine.
type Gateway interface {
	// PullOrBuild makes the definition's image available locally, pulling
	// a referenced image or building from the definition's build path.
	PullOrBuild(ctx context.Context, def *model.ContainerDefinition) error

	// Create creates a container for the definition. When the definition
	// declares a net dependency, netTarget is the live handle of the
	// container whose network namespace it joins.
	Create(ctx context.Context, def *model.ContainerDefinition, netTarget Handle) (Handle, error)

	// Start starts a created container.
	Start(ctx context.Context, h Handle) error

	// Stop stops a running container, allowing it the given grace period.
	Stop(ctx context.Context, h Handle, timeout time.Duration) error

	// Remove deletes the runtime object. force skips the stopped-state
	// requirement at the runtime level.
	Remove(ctx context.Context, h Handle, force bool) error

	// Inspect reports the container's runtime state.
	Inspect(ctx context.Context, h Handle) (InspectResult, error)

	// Lookup finds the live runtime object for a managed container name
	// from a previous run. The boolean reports whether one exists.
	Lookup(ctx context.Context, name string) (Handle, bool, error)

	// Tag applies an additional reference to the definition's image
	// without touching the container.
	Tag(ctx context.Context, def *model.ContainerDefinition, ref string) error
}

// Op identifies which gateway capability produced an error.
type Op string

const (
	OpPull    Op = "pull"
	OpBuild   Op = "build"
	OpCreate  Op = "create"
	OpStart   Op = "start"
	OpStop    Op = "stop"
	OpRemove  Op = "remove"
	OpInspect Op = "inspect"
	OpLookup  Op = "lookup"
	OpTag     Op = "tag"
)

// OpError wraps a failed gateway call with the operation, the container it
// targeted, and whether the failure is worth retrying. Transient failures
// (daemon unavailable, timeouts) are retried by the engine with backoff;
// permanent ones (image not found, invalid option, name conflict) fail the
// container immediately.
type OpError struct {
	Op        Op
	Container string
	Err       error
	transient bool
}

// NewTransient wraps err as a retryable gateway failure.
func NewTransient(op Op, container string, err error) *OpError {
	return &OpError{Op: op, Container: container, Err: err, transient: true}
}

// NewPermanent wraps err as a non-retryable gateway failure.
func NewPermanent(op Op, container string, err error) *OpError {
	return &OpError{Op: op, Container: container, Err: err}
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Container, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Transient reports whether the engine may retry the operation.
func (e *OpError) Transient() bool {
	return e.transient
}

// IsTransient reports whether err is a retryable gateway failure. Errors
// that are not OpErrors are treated as permanent: retrying an unknown
// failure risks repeating a side effect.
func IsTransient(err error) bool {
	var oe *OpError
	return errors.As(err, &oe) && oe.transient
}
