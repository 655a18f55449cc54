// Package registry implements the process-wide catalog of container groups
// and their member definitions, together with the status view the lifecycle
// engine publishes.
//
// The registry owns no runtime handles and performs no runtime calls; it is
// a naming and status index. Status transitions are serialized per
// container name: the engine must acquire a name with BeginTransition
// before mutating its status, and a second concurrent acquisition is
// rejected with a ConcurrentOperationError rather than interleaved.
package registry

import (
	"sync"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// entry pairs a registered definition with its engine-owned status.
type entry struct {
	def    *model.ContainerDefinition
	status model.ContainerStatus
	cause  error
	busy   bool
}

// Status is a read-only snapshot of one container's state.
type Status struct {
	// Name is the container name.
	Name string

	// State is the lifecycle state at snapshot time.
	State model.ContainerStatus

	// Cause is the error that produced a Failed state, nil otherwise.
	Cause error
}

// Registry is the catalog of known groups and containers. All methods are
// safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	groups     map[string]*model.GroupDefinition
	groupOrder []string
	containers map[string]*entry
	declared   []string
	topology   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		groups:     make(map[string]*model.GroupDefinition),
		containers: make(map[string]*entry),
	}
}

// Register adds a group definition. It fails with *model.DuplicateGroupError
// if the name is already taken; the existing group is left untouched.
func (r *Registry) Register(g *model.GroupDefinition) error {
	if err := g.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[g.Name]; exists {
		return &model.DuplicateGroupError{Group: g.Name}
	}
	r.groups[g.Name] = g
	r.groupOrder = append(r.groupOrder, g.Name)
	return nil
}

// AddContainer registers a container definition under the named group.
// An empty group name registers the container ungrouped.
//
// Container names are global: a name held by any group (or ungrouped)
// fails with *model.DuplicateContainerError and the first registration
// stays intact. A non-empty group must already be registered, otherwise
// *model.UnknownGroupError is returned. The definition must have passed
// Validate; membership is recorded on the group when not already listed.
func (r *Registry) AddContainer(group string, def *model.ContainerDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, taken := r.containers[def.Name]; taken {
		return &model.DuplicateContainerError{
			Container: def.Name,
			Group:     existing.def.Group,
		}
	}

	if group != "" {
		g, ok := r.groups[group]
		if !ok {
			return &model.UnknownGroupError{Group: group}
		}
		if !g.HasMember(def.Name) {
			g.Members = append(g.Members, def.Name)
		}
	}
	def.Group = group

	r.containers[def.Name] = &entry{def: def, status: model.StatusUndefined}
	r.declared = append(r.declared, def.Name)
	return nil
}

// Group returns the named group definition.
func (r *Registry) Group(name string) (*model.GroupDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[name]
	if !ok {
		return nil, &model.UnknownGroupError{Group: name}
	}
	return g, nil
}

// Groups returns all group names in registration order.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.groupOrder...)
}

// GroupDefinitions returns a name-keyed view of all registered groups,
// in the shape graph.Build consumes.
func (r *Registry) GroupDefinitions() map[string]*model.GroupDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*model.GroupDefinition, len(r.groups))
	for name, g := range r.groups {
		out[name] = g
	}
	return out
}

// Definition returns the named container definition.
func (r *Registry) Definition(name string) (*model.ContainerDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.containers[name]
	if !ok {
		return nil, &model.UnknownContainerError{Container: name}
	}
	return e.def, nil
}

// Definitions returns all registered container definitions in declaration
// order. The dependency graph's tie-break relies on this order being
// stable.
func (r *Registry) Definitions() []*model.ContainerDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.ContainerDefinition, 0, len(r.declared))
	for _, name := range r.declared {
		out = append(out, r.containers[name].def)
	}
	return out
}

// ResolvedMembers returns the definitions of every member of the named
// group, in the group's declaration order. A member name without a
// registered definition fails with *model.UnknownContainerError: a group
// whose members do not all resolve is unusable.
func (r *Registry) ResolvedMembers(group string) ([]*model.ContainerDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[group]
	if !ok {
		return nil, &model.UnknownGroupError{Group: group}
	}

	out := make([]*model.ContainerDefinition, 0, len(g.Members))
	for _, m := range g.Members {
		e, ok := r.containers[m]
		if !ok {
			return nil, &model.UnknownContainerError{Container: m}
		}
		out = append(out, e.def)
	}
	return out, nil
}

// Status returns a read-only snapshot of the named container's state. It
// never blocks on in-flight transitions: the snapshot reflects whatever
// state the engine last published.
func (r *Registry) Status(name string) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.containers[name]
	if !ok {
		return Status{}, &model.UnknownContainerError{Container: name}
	}
	return Status{Name: name, State: e.status, Cause: e.cause}, nil
}

// GroupStatus returns snapshots for every member of the named group, in
// member order.
func (r *Registry) GroupStatus(group string) ([]Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.groups[group]
	if !ok {
		return nil, &model.UnknownGroupError{Group: group}
	}

	out := make([]Status, 0, len(g.Members))
	for _, m := range g.Members {
		if e, ok := r.containers[m]; ok {
			out = append(out, Status{Name: m, State: e.status, Cause: e.cause})
		}
	}
	return out, nil
}

// BeginTransition acquires the single-writer slot for the named container.
// A second acquisition before EndTransition fails with
// *model.ConcurrentOperationError, leaving the in-flight operation and the
// container's state untouched.
func (r *Registry) BeginTransition(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.containers[name]
	if !ok {
		return &model.UnknownContainerError{Container: name}
	}
	if e.busy {
		return &model.ConcurrentOperationError{Container: name}
	}
	e.busy = true
	return nil
}

// EndTransition releases the single-writer slot for the named container.
func (r *Registry) EndTransition(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.containers[name]; ok {
		e.busy = false
	}
}

// SetStatus publishes a new state for the named container. A Failed state
// carries the causing error; any other state clears it. Only the engine,
// holding the container's transition slot, calls this.
func (r *Registry) SetStatus(name string, status model.ContainerStatus, cause error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.containers[name]
	if !ok {
		return
	}
	e.status = status
	if status == model.StatusFailed {
		e.cause = cause
	} else {
		e.cause = nil
	}
}

// SetTopology records the most recently computed start order, exposed for
// diagnostics via Topology.
func (r *Registry) SetTopology(order []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topology = append([]string{}, order...)
}

// Topology returns the last computed start order. When group is non-empty,
// the order is restricted to that group's members; relative order is
// preserved.
func (r *Registry) Topology(group string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if group == "" {
		return append([]string{}, r.topology...), nil
	}

	g, ok := r.groups[group]
	if !ok {
		return nil, &model.UnknownGroupError{Group: group}
	}
	var out []string
	for _, name := range r.topology {
		if g.HasMember(name) {
			out = append(out, name)
		}
	}
	return out, nil
}
