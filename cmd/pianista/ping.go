package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

// pingCmd checks connectivity and credentials.
var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the Pianista API is reachable",
	Args:  cobra.NoArgs,
	RunE:  runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	start := time.Now()
	banner, err := e.client.Root(cmd.Context())
	if err != nil {
		return friendlyError(err, "")
	}
	latency := time.Since(start)

	out := cmd.OutOrStdout()
	successColor.Fprintf(out, "%s is up", e.client.BaseURL())
	dimColor.Fprintf(out, " (%s)\n", latency.Round(time.Millisecond))

	keys := make([]string, 0, len(banner))
	for k := range banner {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %s: %v\n", k, banner[k])
	}
	return nil
}
