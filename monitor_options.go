package pianista

import (
	"errors"
	"fmt"
	"log/slog"
)

const (
	defaultPort       = 8080
	defaultMaxTracked = 100
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	title           string
	port            int
	maxTracked      int
	logger          *slog.Logger
	pollerOpts      []Option
	planOpts        []Option
	solveOpts       []Option
	statusCallbacks []func(JobUpdate)
}

// MonitorOption configures a [Monitor] during construction.
type MonitorOption func(*monitorConfig) error

// WithPort sets the HTTP port for the gateway. Defaults to 8080.
//
// Returns an error if the port is outside 1-65535.
func WithPort(port int) MonitorOption {
	return func(cfg *monitorConfig) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("port must be between 1 and 65535, got %d", port)
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title shown in the browser tab and header.
//
// Returns an error if the title is empty.
func WithTitle(title string) MonitorOption {
	return func(cfg *monitorConfig) error {
		if title == "" {
			return errors.New("title cannot be empty")
		}
		cfg.title = title
		return nil
	}
}

// WithMonitorLogger sets a custom [slog.Logger] for the monitor, its pollers
// and the gateway. If not specified, [slog.Default] is used.
func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithPollerOptions appends options applied to every job poller after the
// plan or solve preset, e.g. to shorten intervals.
//
// Success, error and pending callbacks set here are replaced by the
// monitor's own; use [WithStatusCallback] to observe transitions.
func WithPollerOptions(opts ...Option) MonitorOption {
	return func(cfg *monitorConfig) error {
		cfg.pollerOpts = append(cfg.pollerOpts, opts...)
		return nil
	}
}

// WithPlanPollerOptions appends options applied only to planning jobs,
// after those given to [WithPollerOptions].
func WithPlanPollerOptions(opts ...Option) MonitorOption {
	return func(cfg *monitorConfig) error {
		cfg.planOpts = append(cfg.planOpts, opts...)
		return nil
	}
}

// WithSolvePollerOptions appends options applied only to MiniZinc jobs,
// after those given to [WithPollerOptions].
func WithSolvePollerOptions(opts ...Option) MonitorOption {
	return func(cfg *monitorConfig) error {
		cfg.solveOpts = append(cfg.solveOpts, opts...)
		return nil
	}
}

// WithStatusCallback registers a function called on every job transition.
//
// Callbacks run synchronously after the store is updated, in registration
// order, on the goroutine of the job's poller. Keep them fast.
// Panics are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithStatusCallback(cb func(JobUpdate)) MonitorOption {
	return func(cfg *monitorConfig) error {
		if cb != nil {
			cfg.statusCallbacks = append(cfg.statusCallbacks, cb)
		}
		return nil
	}
}

// WithMaxTracked limits how many jobs may be polled at once. Defaults to 100.
// Finished jobs do not count against the limit.
func WithMaxTracked(n int) MonitorOption {
	return func(cfg *monitorConfig) error {
		if n < 1 {
			return errors.New("max tracked jobs must be at least 1")
		}
		cfg.maxTracked = n
		return nil
	}
}
