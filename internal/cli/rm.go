// Package cli — rm.go implements the "flotilla rm" command, which removes
// a single container: its runtime object (stopped first unless --force)
// and its stored definition. Removal is refused while other definitions
// join the container's network namespace, because they would be left
// referencing a name that no longer resolves.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/flotilla/internal/graph"
	"github.com/mmr-tortoise/flotilla/internal/model"
	"github.com/mmr-tortoise/flotilla/internal/runtime"
)

// NewRemoveCommand creates the "rm" cobra command.
func NewRemoveCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <container>",
		Short: "Remove a container and its stored definition",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemove(cmd.Context(), args[0], force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Remove without a graceful stop")
	return cmd
}

func runRemove(ctx context.Context, name string, force bool) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	def, err := ws.reg.Definition(name)
	if err != nil {
		return err
	}

	// Refuse while other definitions depend on this one.
	g, err := graph.Build(ws.reg.Definitions(), ws.reg.GroupDefinitions())
	if err != nil {
		return err
	}
	if dependents := g.Dependents(name); len(dependents) > 0 {
		return model.NewValidationError("net",
			fmt.Sprintf("containers %v join %q's network namespace; remove them first", dependents, name))
	}

	// Tear down the runtime object, when one exists.
	cli, err := runtime.NewDockerClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()
	if err := runtime.Ping(ctx, cli); err != nil {
		return err
	}

	logger := newLogger()
	gw := runtime.NewDockerGateway(cli, logger)
	h, exists, err := gw.Lookup(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		if !force {
			if err := gw.Stop(ctx, h, ws.cfg.StopTimeout); err != nil {
				return err
			}
		}
		if err := gw.Remove(ctx, h, force); err != nil {
			return err
		}
	}

	// Drop the stored definition and any group membership.
	if err := ws.store.Remove(name); err != nil {
		return err
	}
	if def.Group != "" {
		groups, err := ws.store.LoadGroups()
		if err != nil {
			return err
		}
		if grp, ok := groups[def.Group]; ok {
			members := grp.Members[:0]
			for _, m := range grp.Members {
				if m != name {
					members = append(members, m)
				}
			}
			grp.Members = members
			if grp.Master == name {
				grp.Master = ""
			}
			if err := ws.store.SaveGroups(groups); err != nil {
				return err
			}
		}
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"name":   name,
			"action": "removed",
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Removed container %q\n", name)
	return nil
}
