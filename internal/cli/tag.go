// Package cli — tag.go implements the "flotilla tag" command: apply an
// additional reference to the image a defined container runs. Operators
// use this to pin a known-good build before an update, or to push a
// locally built image under a registry reference.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/flotilla/internal/runtime"
)

// NewTagCommand creates the "tag" cobra command.
func NewTagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <container> <reference>",
		Short: "Tag a container's image under another reference",
		Long: `Apply an additional reference to the image the named container runs —
the pull reference for pulled images, the build tag for locally built
ones. The image must already be present on the daemon.

Examples:
  flotilla tag db db-backup:pre-upgrade
  flotilla tag api registry.local/api:v2`,

		Args: cobra.ExactArgs(2),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(cmd.Context(), args[0], args[1])
		},
	}
	return cmd
}

func runTag(ctx context.Context, name, ref string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	// Resolve the definition before touching the daemon so an unknown
	// name fails fast.
	def, err := ws.reg.Definition(name)
	if err != nil {
		return err
	}

	cli, err := runtime.NewDockerClient()
	if err != nil {
		return err
	}
	defer cli.Close()
	if err := runtime.Ping(ctx, cli); err != nil {
		return err
	}

	gw := runtime.NewDockerGateway(cli, newLogger())
	if err := gw.Tag(ctx, def, ref); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"name":   name,
			"action": "tagged",
			"source": def.ImageRef(),
			"target": ref,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Tagged %s as %s\n", def.ImageRef(), ref)
	return nil
}
