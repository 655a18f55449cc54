// Package cli — define.go implements the "flotilla define" command.
//
// The define command validates a container definition document (YAML or
// JSONC) and stores it normalized in the definitions directory. With
// --group, the container is also recorded as a member of an existing
// group. Validation happens here, once: runs reread the stored document
// but never re-admit an invalid one.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/flotilla/internal/definition"
	"github.com/mmr-tortoise/flotilla/internal/model"
)

// NewDefineCommand creates the "define" cobra command.
func NewDefineCommand() *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:   "define <file>",
		Short: "Validate and store a container definition",
		Long: `Validate a container definition document and store it in the
definitions directory. YAML is the default format; files ending in .json
or .jsonc are parsed as JSON with comments.

Examples:
  flotilla define ./postgres.yaml
  flotilla define --group backend ./api.jsonc`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDefine(args[0], group)
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Add the container to this group")
	return cmd
}

func runDefine(path, group string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}

	// Parse and validate, but persist nothing yet: a rejected definition
	// must leave the store exactly as it was, including an earlier
	// registration under the same name.
	def, err := definition.LoadFile(path)
	if err != nil {
		return err
	}

	// A same-name redefinition within the same group is an update; a name
	// held by a different group is a duplicate and the first registration
	// stays intact.
	if existing, lookupErr := ws.reg.Definition(def.Name); lookupErr == nil {
		if existing.Group != "" && existing.Group != group {
			return &model.DuplicateContainerError{Container: def.Name, Group: existing.Group}
		}
	}

	var groups map[string]*model.GroupDefinition
	if group != "" {
		groups, err = ws.store.LoadGroups()
		if err != nil {
			return err
		}
		if _, ok := groups[group]; !ok {
			return &model.UnknownGroupError{Group: group}
		}
	}

	if err := ws.store.Save(def); err != nil {
		return err
	}

	if group != "" {
		g := groups[group]
		if !g.HasMember(def.Name) {
			g.Members = append(g.Members, def.Name)
			if err := ws.store.SaveGroups(groups); err != nil {
				return err
			}
		}
	}

	if IsJSONOutput() {
		data, _ := json.MarshalIndent(map[string]string{
			"name":   def.Name,
			"action": "defined",
			"group":  group,
		}, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if group != "" {
		fmt.Printf("Defined container %q in group %q\n", def.Name, group)
	} else {
		fmt.Printf("Defined container %q\n", def.Name)
	}
	return nil
}
