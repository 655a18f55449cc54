// Package cli — up.go implements the "flotilla up" command.
//
// Up brings a group, a single container, or everything (with no
// argument) to running in dependency order. The run never aborts on a
// single container's failure: the affected subtree is skipped and
// reported, unrelated chains proceed, and the exit code reflects
// whether anything failed.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewUpCommand creates the "up" cobra command.
func NewUpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up [group|container]",
		Short: "Start containers in dependency order",
		Long: `Start the named group's containers, dependencies first. A container
name starts just that container and its dependency chain. Containers
the targets depend on are started too, even when they belong to another
group. Without an argument, every defined container starts.

Examples:
  flotilla up backend
  flotilla up db
  flotilla up --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd.Context(), scopeArg(args))
		},
	}
	return cmd
}

func runUp(ctx context.Context, scope string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	eng, closer, err := newEngine(ctx, ws)
	if err != nil {
		return err
	}
	defer closer()

	sum, err := eng.Up(ctx, scope)
	if err != nil {
		return err
	}
	return printSummary("up", sum)
}

// scopeArg reads the optional group-or-container positional; empty
// selects everything.
func scopeArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}
