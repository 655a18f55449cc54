// Package cli — restart.go implements the "flotilla restart" command:
// tear a group or a single container down (removing runtime objects)
// and bring it back up from the stored definitions, so definition and
// image changes take effect.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRestartCommand creates the "restart" cobra command.
func NewRestartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart [group|container]",
		Short: "Recreate and restart containers",
		Long: `Stop and remove the named group's containers, then create and start
them again in dependency order. A container name restarts just that
container and its dependency chain. Containers pick up definition and
image changes on the way back up.`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestart(cmd.Context(), scopeArg(args))
		},
	}
	return cmd
}

func runRestart(ctx context.Context, scope string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	eng, closer, err := newEngine(ctx, ws)
	if err != nil {
		return err
	}
	defer closer()

	sum, err := eng.Restart(ctx, scope)
	if err != nil {
		return err
	}
	return printSummary("restart", sum)
}
