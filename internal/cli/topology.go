// Package cli — topology.go implements the "flotilla topology" command,
// which prints the computed start order without touching the runtime.
// Operators use it to verify what an up run would do and to surface
// cycles and unresolved references early.
package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/flotilla/internal/graph"
)

// NewTopologyCommand creates the "topology" cobra command.
func NewTopologyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology [group]",
		Short: "Show the computed start order",
		Long: `Compute and print the dependency-ordered start sequence, optionally
restricted to one group's members and their dependencies. Cycles and
unresolved net references are reported as errors here, with no runtime
involved.`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopology(scopeArg(args))
		},
	}
	return cmd
}

func runTopology(group string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	g, err := graph.Build(ws.reg.Definitions(), ws.reg.GroupDefinitions())
	if err != nil {
		return err
	}

	order := g.StartOrder()
	if group != "" {
		members, err := ws.reg.ResolvedMembers(group)
		if err != nil {
			return err
		}
		scope := make(map[string]bool)
		for _, m := range members {
			scope[m.Name] = true
			for _, dep := range g.TransitiveDependencies(m.Name) {
				scope[dep] = true
			}
		}
		var filtered []string
		for _, name := range order {
			if scope[name] {
				filtered = append(filtered, name)
			}
		}
		order = filtered
	}

	if IsJSONOutput() {
		type nodeJSON struct {
			Name      string   `json:"name"`
			DependsOn []string `json:"dependsOn,omitempty"`
		}
		out := make([]nodeJSON, 0, len(order))
		for _, name := range order {
			out = append(out, nodeJSON{Name: name, DependsOn: g.Dependencies(name)})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(order) == 0 {
		fmt.Println("No containers defined")
		return nil
	}
	for i, name := range order {
		deps := g.Dependencies(name)
		if len(deps) > 0 {
			fmt.Printf("  %2d. %s  (after %s)\n", i+1, name, strings.Join(deps, ", "))
			continue
		}
		fmt.Printf("  %2d. %s\n", i+1, name)
	}
	return nil
}
