package config

import (
	"log/slog"

	"github.com/pianista-dev/pianista"
	"github.com/pianista-dev/pianista/api"
)

// NewClient builds an API client from the api section.
func NewClient(cfg *Config, logger *slog.Logger) (*api.Client, error) {
	var opts []api.ClientOption

	if cfg.API.APIKey != "" {
		opts = append(opts, api.WithAPIKey(cfg.API.APIKey))
	}
	if cfg.API.Timeout != 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout.Duration()))
	}
	if r := cfg.API.Retry; r != nil {
		opts = append(opts, api.WithRetry(r.Attempts, r.Delay.Duration()))
	}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, api.WithRateLimit(cfg.API.RateLimit))
	}
	if logger != nil {
		opts = append(opts, api.WithLogger(logger))
	}

	return api.NewClient(cfg.API.BaseURL, opts...)
}

// PlanPolicy returns [pianista.PlanPolicy] with the polling.plan overrides applied.
func (c *Config) PlanPolicy() pianista.BackoffPolicy {
	return c.Polling.Plan.apply(pianista.PlanPolicy())
}

// SolvePolicy returns [pianista.SolvePolicy] with the polling.solve overrides applied.
func (c *Config) SolvePolicy() pianista.BackoffPolicy {
	return c.Polling.Solve.apply(pianista.SolvePolicy())
}

// apply overlays the non-zero fields on base.
func (b BackoffConfig) apply(base pianista.BackoffPolicy) pianista.BackoffPolicy {
	if b.InitialInterval != 0 {
		base.Initial = b.InitialInterval.Duration()
	}
	if b.MaxInterval != 0 {
		base.Max = b.MaxInterval.Duration()
	} else if base.Max < base.Initial {
		base.Max = base.Initial
	}
	if b.MaxAttempts != 0 {
		base.MaxAttempts = b.MaxAttempts
	}
	if b.Multiplier != 0 {
		base.Multiplier = b.Multiplier
	}
	return base
}

// PollerOptions returns the options for a standalone poller of kind.
func (c *Config) PollerOptions(kind pianista.JobKind, logger *slog.Logger) []pianista.Option {
	policy := c.SolvePolicy()
	if kind == pianista.JobKindPlan {
		policy = c.PlanPolicy()
	}

	opts := []pianista.Option{pianista.WithBackoffPolicy(policy)}
	if logger != nil {
		opts = append(opts, pianista.WithLogger(logger))
	}
	return opts
}

// MonitorOptions converts the server and polling sections into options
// for [pianista.NewMonitor].
func (c *Config) MonitorOptions(logger *slog.Logger) []pianista.MonitorOption {
	opts := []pianista.MonitorOption{
		pianista.WithPort(c.Server.Port),
		pianista.WithPlanPollerOptions(pianista.WithBackoffPolicy(c.PlanPolicy())),
		pianista.WithSolvePollerOptions(pianista.WithBackoffPolicy(c.SolvePolicy())),
	}

	if c.Server.Title != "" {
		opts = append(opts, pianista.WithTitle(c.Server.Title))
	}
	if c.Server.MaxTracked > 0 {
		opts = append(opts, pianista.WithMaxTracked(c.Server.MaxTracked))
	}
	if logger != nil {
		opts = append(opts, pianista.WithMonitorLogger(logger))
	}
	return opts
}
