// Package cli — down.go implements the "flotilla down" command.
//
// Down stops a group or a single container in the exact reverse of the
// start order. Containers elsewhere that depend on the targets are
// stopped first; a container whose stop fails blocks its namespace
// donors from being stopped, since yanking a namespace out from under a
// live container would break it.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/flotilla/internal/engine"
)

// NewDownCommand creates the "down" cobra command.
func NewDownCommand() *cobra.Command {
	var (
		remove bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "down [group|container]",
		Short: "Stop containers in reverse dependency order",
		Long: `Stop the named group's containers, dependents first. A container name
stops just that container and whatever depends on it. Without an
argument, every defined container stops.

With --rm the runtime objects are removed after stopping. --force skips
the graceful stop and removes directly; reverse order is still honored.

Examples:
  flotilla down backend
  flotilla down db
  flotilla down --rm --force backend`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDown(cmd.Context(), scopeArg(args), engine.DownOptions{
				Remove: remove || force,
				Force:  force,
			})
		},
	}

	cmd.Flags().BoolVar(&remove, "rm", false, "Remove the runtime objects after stopping")
	cmd.Flags().BoolVar(&force, "force", false, "Remove without a graceful stop (implies --rm)")
	return cmd
}

func runDown(ctx context.Context, scope string, opts engine.DownOptions) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	eng, closer, err := newEngine(ctx, ws)
	if err != nil {
		return err
	}
	defer closer()

	sum, err := eng.Down(ctx, scope, opts)
	if err != nil {
		return err
	}
	return printSummary("down", sum)
}
