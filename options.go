package pianista

import (
	"errors"
	"log/slog"
	"time"
)

const (
	// defaultInitialInterval matches the UI auto-refresh interval of the web front-end.
	defaultInitialInterval   = 5 * time.Second
	defaultMaxInterval       = 30 * time.Second
	defaultMaxAttempts       = 20
	defaultBackoffMultiplier = 1.5

	// transientCeiling caps how many HTTP 500 responses a session tolerates.
	transientCeiling = 5
)

// pollerConfig holds mutable state during Poller construction.
type pollerConfig struct {
	policy    BackoffPolicy
	enabled   bool
	logger    *slog.Logger
	onSuccess func([]byte)
	onError   func(error)
	onPending func(PendingStatus)
	onTick    func(int)
}

func defaultPollerConfig() *pollerConfig {
	return &pollerConfig{
		policy: BackoffPolicy{
			Initial:     defaultInitialInterval,
			Max:         defaultMaxInterval,
			Multiplier:  defaultBackoffMultiplier,
			MaxAttempts: defaultMaxAttempts,
		},
		enabled: true,
	}
}

// Option configures a [Poller] during construction.
//
// Options are applied in order, so a later option overrides an earlier one.
// This is how [NewPlanPoller] lets caller options win over its presets.
type Option func(*pollerConfig) error

// WithInitialInterval sets the delay after the first pending response.
// Defaults to 5 seconds. A maximum interval shorter than d is raised to d;
// pass [WithMaxInterval] after this option to set it explicitly.
//
// Returns an error if the duration is zero or negative.
func WithInitialInterval(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("initial interval must be positive")
		}
		cfg.policy.Initial = d
		if cfg.policy.Max < d {
			cfg.policy.Max = d
		}
		return nil
	}
}

// WithMaxInterval caps the delay between retries. Defaults to 30 seconds.
//
// Returns an error if the duration is zero or negative.
func WithMaxInterval(d time.Duration) Option {
	return func(cfg *pollerConfig) error {
		if d <= 0 {
			return errors.New("max interval must be positive")
		}
		cfg.policy.Max = d
		return nil
	}
}

// WithMaxAttempts sets how many pending responses are tolerated before the
// session fails with a [TimeoutError]. Defaults to 20.
func WithMaxAttempts(n int) Option {
	return func(cfg *pollerConfig) error {
		if n < 1 {
			return errors.New("max attempts must be at least 1")
		}
		cfg.policy.MaxAttempts = n
		return nil
	}
}

// WithBackoffMultiplier sets the growth factor between retries. Defaults to 1.5.
func WithBackoffMultiplier(m float64) Option {
	return func(cfg *pollerConfig) error {
		if m < 1 {
			return errors.New("backoff multiplier must be at least 1")
		}
		cfg.policy.Multiplier = m
		return nil
	}
}

// WithBackoffPolicy replaces the whole retry schedule at once.
func WithBackoffPolicy(p BackoffPolicy) Option {
	return func(cfg *pollerConfig) error {
		if err := p.Validate(); err != nil {
			return err
		}
		cfg.policy = p
		return nil
	}
}

// WithEnabled toggles polling. When disabled, StartPolling has no effect
// and returns [ErrPollingDisabled].
func WithEnabled(enabled bool) Option {
	return func(cfg *pollerConfig) error {
		cfg.enabled = enabled
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *pollerConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithOnSuccess registers the callback invoked once when a session succeeds.
// The argument is the raw response body.
//
// Nil callbacks are silently ignored.
func WithOnSuccess(cb func(payload []byte)) Option {
	return func(cfg *pollerConfig) error {
		if cb != nil {
			cfg.onSuccess = cb
		}
		return nil
	}
}

// WithOnError registers the callback invoked once when a session fails.
//
// Nil callbacks are silently ignored.
func WithOnError(cb func(err error)) Option {
	return func(cfg *pollerConfig) error {
		if cb != nil {
			cfg.onError = cb
		}
		return nil
	}
}

// WithOnPending registers the callback invoked for every pending response.
//
// Nil callbacks are silently ignored.
func WithOnPending(cb func(PendingStatus)) Option {
	return func(cfg *pollerConfig) error {
		if cb != nil {
			cfg.onPending = cb
		}
		return nil
	}
}

// WithOnTick registers a countdown callback fired once per second while a
// retry is scheduled, with the whole seconds left before the next request.
//
// The countdown is informational only and never affects scheduling.
// Nil callbacks are silently ignored.
func WithOnTick(cb func(secondsLeft int)) Option {
	return func(cfg *pollerConfig) error {
		if cb != nil {
			cfg.onTick = cb
		}
		return nil
	}
}
