// Package cli — workspace.go assembles the pieces every command needs:
// configuration, the definition store, and a registry populated from the
// stored documents. Commands that drive the runtime additionally open a
// Docker connection through newEngine.
package cli

import (
	"context"
	"sort"

	"github.com/mmr-tortoise/flotilla/internal/config"
	"github.com/mmr-tortoise/flotilla/internal/definition"
	"github.com/mmr-tortoise/flotilla/internal/engine"
	"github.com/mmr-tortoise/flotilla/internal/port"
	"github.com/mmr-tortoise/flotilla/internal/registry"
	"github.com/mmr-tortoise/flotilla/internal/runtime"
)

// workspace bundles the loaded configuration, the on-disk definition
// store, and the registry built from it.
type workspace struct {
	cfg   *config.Config
	store *definition.Store
	reg   *registry.Registry
}

// openWorkspace loads the configuration and rebuilds the registry from
// the stored definitions. Groups register first so members can attach;
// group-scoped defaults are merged into each member before registration,
// which keeps everything downstream working on fully resolved
// definitions.
func openWorkspace() (*workspace, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	store, err := definition.NewStore(cfg.DefinitionsDir)
	if err != nil {
		return nil, err
	}

	reg := registry.New()

	groups, err := store.LoadGroups()
	if err != nil {
		return nil, err
	}
	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		if err := reg.Register(groups[name]); err != nil {
			return nil, err
		}
	}

	// memberOf inverts the group membership lists so each definition
	// registers under its group in one pass.
	memberOf := make(map[string]string)
	for _, name := range groupNames {
		for _, m := range groups[name].Members {
			memberOf[m] = name
		}
	}

	defs, err := store.LoadAll()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		group := memberOf[def.Name]
		if group != "" && groups[group].Defaults != nil {
			def = definition.MergeDefaults(def, groups[group].Defaults)
		}
		if err := reg.AddContainer(group, def); err != nil {
			return nil, err
		}
	}

	return &workspace{cfg: cfg, store: store, reg: reg}, nil
}

// newEngine connects to the Docker daemon and builds the lifecycle
// engine over it. The returned closer releases the daemon connection.
func newEngine(ctx context.Context, ws *workspace) (*engine.Engine, func(), error) {
	cli, err := runtime.NewDockerClient()
	if err != nil {
		return nil, nil, err
	}
	if err := runtime.Ping(ctx, cli); err != nil {
		_ = cli.Close()
		return nil, nil, err
	}

	logger := newLogger()
	gw := runtime.NewDockerGateway(cli, logger)
	eng := engine.New(gw, ws.reg, engine.Options{
		ReadinessTimeout:     ws.cfg.ReadinessTimeout,
		StopTimeout:          ws.cfg.StopTimeout,
		RetryInitialInterval: ws.cfg.Retry.InitialInterval,
		RetryCap:             ws.cfg.Retry.MaxAttempts,
		Parallel:             ws.cfg.Parallel,
		Ports:                port.NewScanner(),
	}, logger)

	closer := func() { _ = cli.Close() }
	return eng, closer, nil
}
