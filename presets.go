package pianista

import (
	"context"
	"errors"
	"time"

	"github.com/pianista-dev/pianista/api"
)

// Plan jobs run longer than MiniZinc jobs, so they get a larger budget.
const (
	planMaxAttempts = 25
	planMaxInterval = 60 * time.Second
)

// PlanPolicy is the default schedule for PDDL planning jobs:
// 5s initial, x1.5, capped at 60s, 25 attempts.
func PlanPolicy() BackoffPolicy {
	return BackoffPolicy{
		Initial:     defaultInitialInterval,
		Max:         planMaxInterval,
		Multiplier:  defaultBackoffMultiplier,
		MaxAttempts: planMaxAttempts,
	}
}

// SolvePolicy is the default schedule for MiniZinc jobs:
// 5s initial, x1.5, capped at 30s, 20 attempts.
func SolvePolicy() BackoffPolicy {
	return BackoffPolicy{
		Initial:     defaultInitialInterval,
		Max:         defaultMaxInterval,
		Multiplier:  defaultBackoffMultiplier,
		MaxAttempts: defaultMaxAttempts,
	}
}

// PlanFetcher adapts [api.Client.GetPlan] to a [FetchFunc].
func PlanFetcher(c *api.Client) FetchFunc {
	return func(ctx context.Context, jobID string) (Response, error) {
		resp, err := c.GetPlan(ctx, jobID)
		if err != nil {
			return Response{}, err
		}
		return Response{StatusCode: resp.StatusCode, Data: resp.Body}, nil
	}
}

// SolveFetcher adapts [api.Client.GetSolve] to a [FetchFunc].
func SolveFetcher(c *api.Client) FetchFunc {
	return func(ctx context.Context, jobID string) (Response, error) {
		resp, err := c.GetSolve(ctx, jobID)
		if err != nil {
			return Response{}, err
		}
		return Response{StatusCode: resp.StatusCode, Data: resp.Body}, nil
	}
}

// NewPlanPoller creates a [Poller] for PDDL planning jobs using [PlanPolicy].
// opts are applied after the preset, so they can override it.
func NewPlanPoller(c *api.Client, opts ...Option) (*Poller, error) {
	if c == nil {
		return nil, errors.New("api client cannot be nil")
	}
	return NewPoller(PlanFetcher(c), append([]Option{WithBackoffPolicy(PlanPolicy())}, opts...)...)
}

// NewSolvePoller creates a [Poller] for MiniZinc jobs using [SolvePolicy].
func NewSolvePoller(c *api.Client, opts ...Option) (*Poller, error) {
	if c == nil {
		return nil, errors.New("api client cannot be nil")
	}
	return NewPoller(SolveFetcher(c), append([]Option{WithBackoffPolicy(SolvePolicy())}, opts...)...)
}
