// Package main is the entry point for the keepwarm CLI.
//
// keepwarm can be run either as a library (SDK) or as a standalone binary
// configured by a YAML file and environment variables. This CLI provides the
// standalone binary approach.
//
// Usage:
//
//	keepwarm serve -c keepwarm.yaml    # Start pinging with the dashboard
//	keepwarm run -c keepwarm.yaml      # Start pinging without the dashboard
//	keepwarm ping -c keepwarm.yaml     # Send one ping and print the result
//	keepwarm validate -c keepwarm.yaml # Validate configuration
//	keepwarm report --journal pings.db # Summarize journaled pings
//	keepwarm version                   # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "keepwarm",
	Short: "Keep a cold-starting HTTP service warm",
	Long: `keepwarm pings an HTTP endpoint on a fixed interval so that hosting
platforms which sleep idle services never let it go cold.

Every ping is recorded in a bounded in-memory history which the dashboard
shows live, together with controls to start, stop and reconfigure pinging.

Quick start:
  1. Create a config file (keepwarm.yaml), or set PING_URL
  2. Run: keepwarm serve -c keepwarm.yaml
  3. Open http://localhost:5000 in your browser

Example config:
  url: https://my-app.onrender.com/evaluate
  method: POST
  interval: 3m
  headers:
    Content-Type: application/json
  body:
    job_description: Software Engineer

Environment overrides:
  PING_URL, PING_METHOD, PING_INTERVAL (seconds), PING_DATA (JSON),
  PING_HEADERS (JSON object), MAX_HISTORY, LOG_LEVEL, LOG_FILE, PORT,
  JOURNAL_PATH`,
	SilenceUsage: true,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this keepwarm binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("keepwarm %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
