// Package cli — group.go implements the "flotilla group" command family:
// creating groups, listing them with their members, and reading or
// setting a group's master.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/flotilla/internal/model"
)

// NewGroupCommand creates the "group" parent command with its
// subcommands.
func NewGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage container groups",
	}

	cmd.AddCommand(newGroupAddCommand())
	cmd.AddCommand(newGroupListCommand())
	cmd.AddCommand(newGroupMasterCommand())
	return cmd
}

func newGroupAddCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a new group",
		Long: `Create an empty group. Containers join it via "define --group"; a
master can be set with "group master" once members exist.`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupAdd(args[0])
		},
	}
	return cmd
}

func runGroupAdd(name string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	groups, err := ws.store.LoadGroups()
	if err != nil {
		return err
	}
	if _, exists := groups[name]; exists {
		return &model.DuplicateGroupError{Group: name}
	}

	g := &model.GroupDefinition{Name: name}
	if err := g.Validate(); err != nil {
		return err
	}
	groups[name] = g
	if err := ws.store.SaveGroups(groups); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"name":   name,
			"action": "created",
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Created group %q\n", name)
	return nil
}

func newGroupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List groups and their members",

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroupList()
		},
	}
}

func runGroupList() error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	names := ws.reg.Groups()

	if IsJSONOutput() {
		type groupJSON struct {
			Name    string   `json:"name"`
			Master  string   `json:"master,omitempty"`
			Members []string `json:"members"`
		}
		out := make([]groupJSON, 0, len(names))
		for _, name := range names {
			g, err := ws.reg.Group(name)
			if err != nil {
				return err
			}
			out = append(out, groupJSON{Name: name, Master: g.Master, Members: g.Members})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(names) == 0 {
		fmt.Println("No groups defined")
		return nil
	}
	for _, name := range names {
		g, err := ws.reg.Group(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", name)
		for _, m := range g.Members {
			marker := ""
			if m == g.Master {
				marker = "  (master)"
			}
			fmt.Printf("  %s%s\n", m, marker)
		}
	}
	return nil
}

func newGroupMasterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "master <group> [container]",
		Short: "Show or set a group's master",
		Long: `Show the group's master when called with one argument, or set it when
called with two. The master is an ordering hint: it is preferred first
among members with no other dependency, but a derived dependency edge
always wins.`,

		Args: cobra.RangeArgs(1, 2),

		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runGroupMasterGet(args[0])
			}
			return runGroupMasterSet(args[0], args[1])
		},
	}
	return cmd
}

func runGroupMasterGet(group string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	g, err := ws.reg.Group(group)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"group":  group,
			"master": g.Master,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	if g.Master == "" {
		fmt.Printf("Group %q has no master\n", group)
		return nil
	}
	fmt.Println(g.Master)
	return nil
}

func runGroupMasterSet(group, master string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	groups, err := ws.store.LoadGroups()
	if err != nil {
		return err
	}
	g, ok := groups[group]
	if !ok {
		return &model.UnknownGroupError{Group: group}
	}
	if !g.HasMember(master) {
		return model.NewValidationError("master",
			fmt.Sprintf("container %q is not a member of group %q", master, group))
	}

	g.Master = master
	if err := ws.store.SaveGroups(groups); err != nil {
		return err
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"group":  group,
			"master": master,
			"action": "updated",
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}
	fmt.Printf("Set master of group %q to %q\n", group, master)
	return nil
}
