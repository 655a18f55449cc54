// Package cli — dump.go implements the "flotilla dump" command, which
// writes a stored container definition into the current directory so an
// operator can edit and re-define it.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewDumpCommand creates the "dump" cobra command.
func NewDumpCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <container>",
		Short: "Write a stored container definition to the current directory",

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0])
		},
	}
	return cmd
}

func runDump(name string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	path, err := ws.store.Dump(name, ".")
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"name": name,
			"path": path,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
