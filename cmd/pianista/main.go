// Package main is the entry point for the pianista CLI.
//
// The CLI submits planning and MiniZinc jobs to the Pianista API, waits for
// their results with backoff polling, and can run a local job gateway with
// a live dashboard.
//
// Usage:
//
//	pianista plan -d domain.pddl -p problem.pddl   # Plan and wait for the result
//	pianista solve -m model.mzn --params data.yaml # Solve a MiniZinc model
//	pianista wait --kind plan JOB_ID...            # Resume waiting on submitted jobs
//	pianista serve -c pianista.yaml                # Start the job gateway
//	pianista version                               # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "pianista",
	Short: "Command line client for the Pianista planning service",
	Long: `pianista talks to the Pianista API: it submits PDDL planning and
MiniZinc solving jobs, polls them with exponential backoff until they
finish, and validates or converts PDDL.

Quick start:
  1. export PIANISTA_API_BASE_URL=https://your-pianista-host
  2. export PIANISTA_API_KEY=...
  3. Run: pianista plan -d domain.pddl -p problem.pddl

Settings can also come from a YAML file passed with -c:
  api:
    base_url: https://your-pianista-host
    api_key: ${PIANISTA_API_KEY}
  polling:
    plan:
      max_attempts: 40`,
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
	Long:  `Print the version, commit hash, and build date of this pianista binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "pianista %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to config file (optional)")
	flags.String("api-url", "", "Pianista API base URL (overrides config and $PIANISTA_API_BASE_URL)")
	flags.String("api-key", "", "Pianista API key (overrides config and $PIANISTA_API_KEY)")
	flags.String("log-level", "warn", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
