// Package engine implements the dependency-ordered container lifecycle:
// it consumes the computed graph order and drives create, start, stop,
// and remove operations through the runtime gateway, publishing every
// state change to the registry.
//
// One engine run is a single coordinating flow. Independent dependency
// subtrees may start concurrently, but containers within one chain are
// strictly sequential: a container starts only after every dependency has
// been confirmed running. Failures are contained to their subtree — a
// broken chain never aborts unrelated chains — and each run returns a
// per-container summary instead of a single error.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/mmr-tortoise/flotilla/internal/graph"
	"github.com/mmr-tortoise/flotilla/internal/model"
	"github.com/mmr-tortoise/flotilla/internal/port"
	"github.com/mmr-tortoise/flotilla/internal/registry"
	"github.com/mmr-tortoise/flotilla/internal/runtime"
)

// Options tune an engine's timing and scheduling behavior. The zero value
// is completed by sensible defaults via withDefaults.
type Options struct {
	// ReadinessTimeout bounds how long a started container may take to
	// report running before its dependents are skipped.
	ReadinessTimeout time.Duration

	// ReadinessPoll is the interval between inspect calls while waiting
	// for readiness.
	ReadinessPoll time.Duration

	// StopTimeout is the grace period passed to the runtime on stop.
	StopTimeout time.Duration

	// RetryInitialInterval seeds the exponential backoff between retries
	// of transient gateway errors.
	RetryInitialInterval time.Duration

	// RetryCap is the number of additional attempts after the first for
	// transient gateway errors. Permanent errors are never retried.
	RetryCap uint64

	// Parallel starts independent dependency subtrees concurrently.
	// Containers within one chain remain strictly sequential either way.
	Parallel bool

	// Ports is the host-port availability probe used by the startup
	// preflight. Nil skips the host probe but keeps duplicate detection.
	Ports port.Checker
}

func (o Options) withDefaults() Options {
	if o.ReadinessTimeout <= 0 {
		o.ReadinessTimeout = 30 * time.Second
	}
	if o.ReadinessPoll <= 0 {
		o.ReadinessPoll = 500 * time.Millisecond
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 500 * time.Millisecond
	}
	if o.RetryCap == 0 {
		o.RetryCap = 2
	}
	return o
}

// Result reports the outcome of one container within a run.
type Result struct {
	// Name is the container name.
	Name string

	// State is the container's lifecycle state when the run finished
	// with it.
	State model.ContainerStatus

	// Err is the failure or skip cause, nil on success.
	Err error
}

// Summary is the per-container outcome of a run. Structural errors
// (validation, cycles, unknown names) abort before any runtime call and
// are returned instead of a Summary.
type Summary struct {
	// Results lists one entry per processed container, in processing
	// order.
	Results []Result

	// Cancelled reports whether the run observed a cancellation.
	Cancelled bool
}

// Failed returns the results that carry an error.
func (s *Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Result returns the entry for name, or nil.
func (s *Summary) Result(name string) *Result {
	for i := range s.Results {
		if s.Results[i].Name == name {
			return &s.Results[i]
		}
	}
	return nil
}

// Engine drives container lifecycles through a runtime gateway.
type Engine struct {
	gw   runtime.Gateway
	reg  *registry.Registry
	opts Options
	log  *log.Logger
}

// New creates an engine over the given gateway and registry.
func New(gw runtime.Gateway, reg *registry.Registry, opts Options, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		gw:   gw,
		reg:  reg,
		opts: opts.withDefaults(),
		log:  logger.With("component", "engine"),
	}
}

// run tracks the mutable state of one orchestration pass.
type run struct {
	mu sync.Mutex

	// results accumulates per-container outcomes in processing order.
	results []Result

	// failed maps a container to its failure or skip cause, consulted by
	// dependents to decide whether to skip.
	failed map[string]error

	// handles maps containers brought up (or found up) this run to their
	// live runtime handles, for net-target resolution.
	handles map[string]runtime.Handle

	// started lists containers that reached Starting or Running during
	// this run, in start order. Rollback on cancellation covers exactly
	// these.
	started []string
}

func newRun() *run {
	return &run{
		failed:  make(map[string]error),
		handles: make(map[string]runtime.Handle),
	}
}

func (r *run) record(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, res)
	if res.Err != nil {
		r.failed[res.Name] = res.Err
	}
}

func (r *run) failure(name string) (error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err, ok := r.failed[name]
	return err, ok
}

func (r *run) handle(name string) (runtime.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[name]
	return h, ok
}

func (r *run) setHandle(name string, h runtime.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[name] = h
}

func (r *run) markStarted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
}

// Up brings up the selected scope in dependency order: a group name, a
// single container name, or everything when empty. The target set expands
// through transitive dependencies, so a container (or a member whose net
// chain crosses group boundaries) pulls its whole chain into the run.
//
// Structural failures — graph errors, port conflicts, an unknown scope —
// return an error before any gateway call. Runtime failures are contained
// per subtree and reported in the Summary.
func (e *Engine) Up(ctx context.Context, scope string) (*Summary, error) {
	g, targets, err := e.plan(scope, expandDependencies)
	if err != nil {
		return nil, err
	}

	targetDefs := make([]*model.ContainerDefinition, 0, len(targets))
	inTarget := make(map[string]bool, len(targets))
	order := g.Filter(targets)
	for _, name := range order {
		def, err := e.reg.Definition(name)
		if err != nil {
			return nil, err
		}
		targetDefs = append(targetDefs, def)
		inTarget[name] = true
	}

	if err := port.Check(targetDefs, e.opts.Ports); err != nil {
		return nil, err
	}

	e.log.Info("starting containers", "scope", scopeLabel(scope), "count", len(order))

	r := newRun()
	pending := make(map[string]bool, len(order))
	for _, name := range order {
		pending[name] = true
	}

	// Wave scheduling: each pass picks every pending container whose
	// in-target dependencies have all been processed. Waves respect the
	// edge set, so the observable start sequence never violates a
	// dependency; within a wave containers belong to distinct subtrees
	// and may run concurrently.
	for len(pending) > 0 {
		var wave []string
		for _, name := range order {
			if !pending[name] {
				continue
			}
			ready := true
			for _, dep := range g.Dependencies(name) {
				if inTarget[dep] && pending[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, name)
			}
		}
		for _, name := range wave {
			delete(pending, name)
		}

		if e.opts.Parallel && len(wave) > 1 {
			eg, waveCtx := errgroup.WithContext(ctx)
			for _, name := range wave {
				name := name
				eg.Go(func() error {
					e.upOne(waveCtx, g, r, name)
					return nil
				})
			}
			_ = eg.Wait()
		} else {
			for _, name := range wave {
				e.upOne(ctx, g, r, name)
			}
		}
	}

	summary := &Summary{Results: r.results, Cancelled: ctx.Err() != nil}
	if summary.Cancelled {
		e.rollback(g, r)
	}
	return summary, nil
}

// upOne processes a single container within an Up run: skip checks,
// transition guard, image, create, start, readiness.
func (e *Engine) upOne(ctx context.Context, g *graph.Graph, r *run, name string) {
	// Cancellation: no new start work once observed. Containers already
	// in flight finish on their own; rollback handles the started set.
	if ctx.Err() != nil {
		r.record(Result{Name: name, State: e.currentState(name), Err: ctx.Err()})
		return
	}

	// A failed or skipped dependency fails this container without a
	// single gateway call, and the skip cascades to its own dependents.
	for _, dep := range g.Dependencies(name) {
		if cause, ok := r.failure(dep); ok {
			err := &model.DependencyUnmetError{Container: name, Dependency: dep, Cause: cause}
			e.reg.SetStatus(name, model.StatusFailed, err)
			r.record(Result{Name: name, State: model.StatusFailed, Err: err})
			e.log.Warn("skipping container", "container", name, "dependency", dep)
			return
		}
	}

	def, err := e.reg.Definition(name)
	if err != nil {
		r.record(Result{Name: name, State: model.StatusUndefined, Err: err})
		return
	}

	if err := e.reg.BeginTransition(name); err != nil {
		r.record(Result{Name: name, State: e.currentState(name), Err: err})
		return
	}
	defer e.reg.EndTransition(name)

	var netTarget runtime.Handle
	if def.Net != "" {
		// The dependency was processed in an earlier wave and confirmed
		// running, so its handle is always on record here.
		h, ok := r.handle(def.Net)
		if !ok {
			err := &model.DependencyUnmetError{Container: name, Dependency: def.Net}
			e.reg.SetStatus(name, model.StatusFailed, err)
			r.record(Result{Name: name, State: model.StatusFailed, Err: err})
			return
		}
		netTarget = h
	}

	if err := e.startOne(ctx, def, netTarget, r); err != nil {
		e.reg.SetStatus(name, model.StatusFailed, err)
		r.record(Result{Name: name, State: model.StatusFailed, Err: err})
		e.log.Error("container failed", "container", name, "err", err)
		return
	}

	r.record(Result{Name: name, State: model.StatusRunning})
}

// startOne drives one container to running: reuse an existing runtime
// object when possible, otherwise pull or build the image, create, start,
// and wait for readiness. The caller holds the transition slot.
func (e *Engine) startOne(ctx context.Context, def *model.ContainerDefinition, netTarget runtime.Handle, r *run) error {
	name := def.Name

	// Reuse a live runtime object from a previous run: up is idempotent
	// for containers already running, and restarts stopped ones without
	// recreating them.
	var h runtime.Handle
	exists := false
	err := e.withRetry(ctx, func() error {
		var lerr error
		h, exists, lerr = e.gw.Lookup(ctx, name)
		return lerr
	})
	if err != nil {
		return err
	}

	if exists {
		ins, ierr := e.gw.Inspect(ctx, h)
		if ierr == nil && ins.Running {
			e.log.Debug("container already running", "container", name)
			e.reg.SetStatus(name, model.StatusRunning, nil)
			r.setHandle(name, h)
			return nil
		}
	} else {
		if err := e.withRetry(ctx, func() error {
			return e.gw.PullOrBuild(ctx, def)
		}); err != nil {
			return err
		}

		err = e.withRetry(ctx, func() error {
			var cerr error
			h, cerr = e.gw.Create(ctx, def, netTarget)
			return cerr
		})
		if err != nil {
			return err
		}
		e.reg.SetStatus(name, model.StatusCreated, nil)
	}

	e.reg.SetStatus(name, model.StatusStarting, nil)
	r.markStarted(name)
	if err := e.withRetry(ctx, func() error {
		return e.gw.Start(ctx, h)
	}); err != nil {
		return err
	}

	if err := e.awaitRunning(ctx, name, h); err != nil {
		return err
	}

	e.reg.SetStatus(name, model.StatusRunning, nil)
	r.setHandle(name, h)
	e.log.Info("container running", "container", name)
	return nil
}

// awaitRunning polls inspect until the container reports running, it
// exits, or the readiness timeout elapses.
func (e *Engine) awaitRunning(ctx context.Context, name string, h runtime.Handle) error {
	deadline := time.Now().Add(e.opts.ReadinessTimeout)
	for {
		ins, err := e.gw.Inspect(ctx, h)
		if err == nil {
			if ins.Running {
				return nil
			}
			if ins.ExitCode != 0 {
				return fmt.Errorf("container %q exited with code %d before becoming ready", name, ins.ExitCode)
			}
		} else if !runtime.IsTransient(err) {
			return err
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("container %q did not reach running within %s", name, e.opts.ReadinessTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.opts.ReadinessPoll):
		}
	}
}

// rollback stops, in reverse dependency order, the containers this run
// brought to Starting or Running. Best effort: rollback failures are
// logged, never propagated. Containers running before the run began are
// left alone.
func (e *Engine) rollback(g *graph.Graph, r *run) {
	if len(r.started) == 0 {
		return
	}
	e.log.Warn("run cancelled, rolling back started containers", "count", len(r.started))

	// The run context is already cancelled; give the rollback its own
	// bounded context.
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(len(r.started))*e.opts.StopTimeout+e.opts.StopTimeout)
	defer cancel()

	// Reverse of start order within this run.
	ordered := g.Filter(r.started)
	for i := len(ordered) - 1; i >= 0; i-- {
		name := ordered[i]
		h, ok := r.handle(name)
		if !ok {
			// Started but never confirmed running; look the handle up.
			var exists bool
			var err error
			h, exists, err = e.gw.Lookup(ctx, name)
			if err != nil || !exists {
				continue
			}
		}
		e.reg.SetStatus(name, model.StatusStopping, nil)
		if err := e.gw.Stop(ctx, h, e.opts.StopTimeout); err != nil {
			e.log.Error("rollback stop failed", "container", name, "err", err)
			e.reg.SetStatus(name, model.StatusFailed, err)
			continue
		}
		e.reg.SetStatus(name, model.StatusStopped, nil)
	}
}

// DownOptions select the teardown behavior.
type DownOptions struct {
	// Remove deletes the runtime objects after stopping them.
	Remove bool

	// Force removes without stopping first. Order is still respected:
	// a network-namespace donor is never removed before its dependents.
	Force bool
}

// Down stops the selected scope — a group, a single container, or
// everything when empty — in reverse dependency order. The target set
// expands through transitive dependents, so stopping a namespace donor
// always stops the containers using its namespace first, including
// across group boundaries.
func (e *Engine) Down(ctx context.Context, scope string, opts DownOptions) (*Summary, error) {
	g, targets, err := e.plan(scope, expandDependents)
	if err != nil {
		return nil, err
	}

	inTarget := make(map[string]bool, len(targets))
	for _, name := range targets {
		inTarget[name] = true
	}

	// Reverse of the start order: dependents first.
	var order []string
	for _, name := range g.StopOrder() {
		if inTarget[name] {
			order = append(order, name)
		}
	}

	e.log.Info("stopping containers", "scope", scopeLabel(scope), "count", len(order))

	r := newRun()

	// blocked maps a container to the dependent whose stop failed.
	// Stopping a namespace donor while a dependent is still running
	// would yank the namespace out from under it.
	blocked := make(map[string]string)

	for _, name := range order {
		if ctx.Err() != nil {
			r.record(Result{Name: name, State: e.currentState(name), Err: ctx.Err()})
			continue
		}

		if by, isBlocked := blocked[name]; isBlocked {
			err := fmt.Errorf("container %q not stopped: dependent %q is still running", name, by)
			r.record(Result{Name: name, State: e.currentState(name), Err: err})
			e.log.Warn("skipping stop", "container", name, "blocked_by", by)
			continue
		}

		if err := e.stopOne(ctx, name, opts); err != nil {
			r.record(Result{Name: name, State: model.StatusFailed, Err: err})
			for _, dep := range g.TransitiveDependencies(name) {
				if inTarget[dep] {
					blocked[dep] = name
				}
			}
			continue
		}
		r.record(Result{Name: name, State: e.currentState(name)})
	}

	return &Summary{Results: r.results, Cancelled: ctx.Err() != nil}, nil
}

// stopOne stops (and optionally removes) one container. The transition
// slot is held for the whole stop/remove sequence.
func (e *Engine) stopOne(ctx context.Context, name string, opts DownOptions) error {
	if err := e.reg.BeginTransition(name); err != nil {
		return err
	}
	defer e.reg.EndTransition(name)

	var h runtime.Handle
	exists := false
	err := e.withRetry(ctx, func() error {
		var lerr error
		h, exists, lerr = e.gw.Lookup(ctx, name)
		return lerr
	})
	if err != nil {
		e.reg.SetStatus(name, model.StatusFailed, err)
		return err
	}
	if !exists {
		// Nothing live to stop. A removal request is already satisfied.
		if opts.Remove {
			e.reg.SetStatus(name, model.StatusRemoved, nil)
		}
		return nil
	}

	skipStop := opts.Force && opts.Remove
	if !skipStop {
		ins, ierr := e.gw.Inspect(ctx, h)
		running := ierr != nil || ins.Running
		if running {
			e.reg.SetStatus(name, model.StatusStopping, nil)
			if err := e.withRetry(ctx, func() error {
				return e.gw.Stop(ctx, h, e.opts.StopTimeout)
			}); err != nil {
				e.reg.SetStatus(name, model.StatusFailed, err)
				return err
			}
		}
		e.reg.SetStatus(name, model.StatusStopped, nil)
		e.log.Info("container stopped", "container", name)
	}

	if opts.Remove {
		if err := e.withRetry(ctx, func() error {
			return e.gw.Remove(ctx, h, opts.Force)
		}); err != nil {
			e.reg.SetStatus(name, model.StatusFailed, err)
			return err
		}
		e.reg.SetStatus(name, model.StatusRemoved, nil)
		e.log.Info("container removed", "container", name)
	}

	return nil
}

// Restart tears the scope down (stopping and removing runtime objects)
// and brings it back up from its stored definitions.
func (e *Engine) Restart(ctx context.Context, scope string) (*Summary, error) {
	if _, err := e.Down(ctx, scope, DownOptions{Remove: true}); err != nil {
		return nil, err
	}
	return e.Up(ctx, scope)
}

// Update refreshes the image for one container definition without
// touching its runtime object. The new image takes effect on the next
// restart.
func (e *Engine) Update(ctx context.Context, name string) error {
	def, err := e.reg.Definition(name)
	if err != nil {
		return err
	}
	return e.withRetry(ctx, func() error {
		return e.gw.PullOrBuild(ctx, def)
	})
}

// expansion selects which transitive closure a plan expands through.
type expansion int

const (
	// expandDependencies pulls a target's dependency chain into the run
	// (used by Up: a container needs its donors).
	expandDependencies expansion = iota

	// expandDependents pulls a target's dependents into the run (used by
	// Down: a donor needs its users gone first).
	expandDependents
)

// plan builds the dependency graph over the whole registry, publishes the
// computed topology, and resolves the run's target set. The scope names a
// group, falls back to a single container, or selects everything when
// empty. Graph errors and unknown names surface here, before any runtime
// call.
func (e *Engine) plan(scope string, exp expansion) (*graph.Graph, []string, error) {
	defs := e.reg.Definitions()
	g, err := graph.Build(defs, e.reg.GroupDefinitions())
	if err != nil {
		return nil, nil, err
	}
	e.reg.SetTopology(g.StartOrder())

	var seed []string
	switch {
	case scope == "":
		for _, d := range defs {
			seed = append(seed, d.Name)
		}
	default:
		if _, gerr := e.reg.Group(scope); gerr == nil {
			members, err := e.reg.ResolvedMembers(scope)
			if err != nil {
				return nil, nil, err
			}
			for _, m := range members {
				seed = append(seed, m.Name)
			}
			break
		}
		// Not a group: a single container scopes the run to itself and
		// its closure.
		def, derr := e.reg.Definition(scope)
		if derr != nil {
			return nil, nil, &model.UnknownGroupError{Group: scope}
		}
		seed = append(seed, def.Name)
	}

	targets := make(map[string]bool, len(seed))
	var names []string
	add := func(name string) {
		if !targets[name] {
			targets[name] = true
			names = append(names, name)
		}
	}
	for _, name := range seed {
		add(name)
		var closure []string
		if exp == expandDependencies {
			closure = g.TransitiveDependencies(name)
		} else {
			closure = g.TransitiveDependents(name)
		}
		for _, n := range closure {
			add(n)
		}
	}

	return g, names, nil
}

// currentState reads the registry's view of a container, defaulting to
// undefined when the name is unknown.
func (e *Engine) currentState(name string) model.ContainerStatus {
	st, err := e.reg.Status(name)
	if err != nil {
		return model.StatusUndefined
	}
	return st.State
}

func scopeLabel(scope string) string {
	if scope == "" {
		return "(all)"
	}
	return scope
}
