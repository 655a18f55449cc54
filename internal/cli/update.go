// Package cli — update.go implements the "flotilla update" command, which
// pulls or rebuilds a container's image without touching the container
// itself. The fresh image takes effect on the next restart.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewUpdateCommand creates the "update" cobra command.
func NewUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <container>",
		Short: "Pull or rebuild a container's image",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runUpdate(ctx context.Context, name string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	eng, closer, err := newEngine(ctx, ws)
	if err != nil {
		return err
	}
	defer closer()

	if err := eng.Update(ctx, name); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"name":   name,
			"action": "updated",
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Updated image for container %q\n", name)
	return nil
}
