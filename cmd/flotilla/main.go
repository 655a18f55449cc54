// Package main is the entry point for the flotilla CLI.
//
// The binary manages groups of interdependent Docker containers from
// declarative definitions. It delegates all functionality to the
// internal/cli package, which defines cobra commands.
//
// Build-time variables (version, commit, date) are injected via ldflags
// during the release process. During development, they default to "dev",
// "none", and "unknown" respectively.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/mmr-tortoise/flotilla/internal/cli"
)

// version, commit, and date are set at build time via ldflags. They
// provide binary identification for the --version flag output.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	// An interrupt cancels the command context. Running operations
	// observe the cancellation, stop scheduling new work, and roll back
	// containers the run started before exiting.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCommand()
	rootCmd.SetContext(ctx)
	cli.Execute(rootCmd)
}
