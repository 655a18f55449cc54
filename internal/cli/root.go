// Package cli implements the cobra-based CLI commands for flotilla.
//
// Each subcommand (define, dump, group, up, down, restart, tag, rm,
// update, status, topology) is defined in its own file within this
// package. This
// file defines the root command that serves as the parent for all
// subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// Global flag variables shared across all subcommands. They are bound to
// cobra persistent flags on the root command, which makes them available
// to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON for machine consumption.
	jsonOutput bool

	// verbose enables debug-level logging on stderr.
	verbose bool

	// cfgFile is an explicit config file path; empty means the default
	// lookup in the definitions directory.
	cfgFile string
)

// version, commit, and date are set at build time via ldflags and injected
// from the main package.
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command. The root
// command itself performs no action; functionality lives in the
// subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flotilla",
		Short: "Dependency-ordered Docker container group manager",
		Long: `flotilla manages groups of interdependent Docker containers from
declarative definitions. Containers start only after the containers whose
network namespace they join are running, and stop in the exact reverse
order.`,

		// Usage and errors are printed by Execute in the format the
		// --json flag selects, not by cobra.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path")

	rootCmd.AddCommand(NewDefineCommand())
	rootCmd.AddCommand(NewDumpCommand())
	rootCmd.AddCommand(NewGroupCommand())
	rootCmd.AddCommand(NewUpCommand())
	rootCmd.AddCommand(NewDownCommand())
	rootCmd.AddCommand(NewRestartCommand())
	rootCmd.AddCommand(NewTagCommand())
	rootCmd.AddCommand(NewRemoveCommand())
	rootCmd.AddCommand(NewUpdateCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewTopologyCommand())

	return rootCmd
}

// Execute runs the root command and translates returned errors into OS
// exit codes. The typed errors from the model package carry their own
// codes; anything else exits 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(exitCodeFor(err))
	}
}

// printError outputs an error in the format the --json flag selects.
// Errors go to stderr even in JSON mode: stdout is reserved for
// successful command output.
func printError(err error) {
	if jsonOutput {
		data, _ := json.MarshalIndent(map[string]any{
			"error": map[string]any{
				"message": err.Error(),
				"code":    exitCodeFor(err),
			},
		}, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

// newLogger creates the CLI's structured logger. Verbose mode surfaces
// the debug-level operation tracing from the gateway and engine; the
// default keeps stderr quiet so command output stays readable.
func newLogger() *log.Logger {
	level := log.WarnLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: verbose,
	})
}

// IsJSONOutput returns whether the --json flag is set. Subcommands use
// this to pick their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
