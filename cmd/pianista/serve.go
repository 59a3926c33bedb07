package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pianista-dev/pianista"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the local job gateway.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job gateway and dashboard",
	Long: `Start a local gateway that submits jobs to Pianista, polls them, and
shows their progress on a live dashboard.

The gateway exposes:
  - GET  /               dashboard
  - GET  /api/jobs       tracked jobs
  - POST /api/plans      submit a planning job
  - POST /api/solves     submit a MiniZinc job
  - GET  /api/sse        live job updates

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  pianista serve -c pianista.yaml
  pianista serve --port 9090 --track plan:3f2c9a --track solve:77b1`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "HTTP port (overrides server.port)")
	serveCmd.Flags().StringArray("track", nil, "already submitted job to track, as KIND:ID (repeatable)")
}

// parseTrack splits a KIND:ID flag value.
func parseTrack(s string) (pianista.JobKind, string, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid --track %q (expected plan:ID or solve:ID)", s)
	}
	k := pianista.JobKind(kind)
	if !k.Valid() {
		return "", "", fmt.Errorf("invalid --track %q: unknown kind %q", s, kind)
	}
	return k, id, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		e.cfg.Server.Port = port
	}

	tracks, _ := cmd.Flags().GetStringArray("track")
	type trackSpec struct {
		kind pianista.JobKind
		id   string
	}
	specs := make([]trackSpec, 0, len(tracks))
	for _, t := range tracks {
		kind, id, err := parseTrack(t)
		if err != nil {
			return err
		}
		specs = append(specs, trackSpec{kind, id})
	}

	e.logger.Info("starting gateway",
		"api", e.client.BaseURL(),
		"port", e.cfg.Server.Port,
		"tracked", len(specs),
	)

	monitor, err := pianista.NewMonitor(e.client, e.cfg.MonitorOptions(e.logger)...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	for _, s := range specs {
		if err := monitor.Track(s.kind, s.id); err != nil {
			return fmt.Errorf("failed to track %s job %s: %w", s.kind, s.id, err)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Dashboard: http://localhost:%d\n", monitor.Port())

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runUntilDone(ctx, monitor.Start, e.logger.Info, e.logger.Warn)
}

// runUntilDone runs start until ctx ends, giving it shutdownTimeout to
// return once ctx is cancelled.
func runUntilDone(ctx context.Context, start func(context.Context) error, info, warn func(string, ...any)) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
