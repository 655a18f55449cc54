// Package cli — status.go implements the "flotilla status" command.
//
// Status is read-only: each definition in scope is looked up against the
// runtime and reported as running, stopped (with its exit code), or
// undefined when no runtime object exists. Nothing is started, stopped,
// or mutated.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/flotilla/internal/model"
	"github.com/mmr-tortoise/flotilla/internal/runtime"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [group]",
		Short: "Show the runtime state of defined containers",

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), scopeArg(args))
		},
	}
	return cmd
}

// containerState is one container's reported runtime state.
type containerState struct {
	Name     string `json:"name"`
	Group    string `json:"group,omitempty"`
	State    string `json:"state"`
	ExitCode int    `json:"exitCode,omitempty"`
}

func runStatus(ctx context.Context, group string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	var defs []*model.ContainerDefinition
	if group == "" {
		defs = ws.reg.Definitions()
	} else {
		defs, err = ws.reg.ResolvedMembers(group)
		if err != nil {
			return err
		}
	}

	cli, err := runtime.NewDockerClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()
	if err := runtime.Ping(ctx, cli); err != nil {
		return err
	}
	gw := runtime.NewDockerGateway(cli, newLogger())

	states := make([]containerState, 0, len(defs))
	for _, def := range defs {
		st := containerState{Name: def.Name, Group: def.Group}

		h, exists, err := gw.Lookup(ctx, def.Name)
		if err != nil {
			return err
		}
		if !exists {
			st.State = string(model.StatusUndefined)
			states = append(states, st)
			continue
		}

		ins, err := gw.Inspect(ctx, h)
		if err != nil {
			return err
		}
		if ins.Running {
			st.State = string(model.StatusRunning)
		} else {
			st.State = string(model.StatusStopped)
			st.ExitCode = ins.ExitCode
		}
		states = append(states, st)
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(states, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(states) == 0 {
		fmt.Println("No containers defined")
		return nil
	}
	for _, st := range states {
		detail := ""
		if st.State == string(model.StatusStopped) && st.ExitCode != 0 {
			detail = fmt.Sprintf("  (exit %d)", st.ExitCode)
		}
		if st.Group != "" {
			fmt.Printf("  %-20s %-10s %s%s\n", st.Name, st.State, st.Group, detail)
			continue
		}
		fmt.Printf("  %-20s %-10s%s\n", st.Name, st.State, detail)
	}
	return nil
}
