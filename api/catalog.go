package api

import (
	"context"
	"fmt"
	"net/url"
)

// Planners lists the available planners.
func (c *Client) Planners(ctx context.Context) ([]Planner, error) {
	var out []Planner
	if err := c.getJSON(ctx, "/planners", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Planner fetches a single planner by id.
func (c *Client) Planner(ctx context.Context, id string) (Planner, error) {
	if id == "" {
		return Planner{}, fmt.Errorf("planner id: %w", ErrMissingField)
	}
	var out Planner
	if err := c.getJSON(ctx, "/planners/"+url.PathEscape(id), nil, &out); err != nil {
		return Planner{}, err
	}
	return out, nil
}

// Solvers lists the available MiniZinc solvers.
func (c *Client) Solvers(ctx context.Context) ([]Solver, error) {
	var out []Solver
	if err := c.getJSON(ctx, "/solvers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Solver fetches a single solver by id.
func (c *Client) Solver(ctx context.Context, id string) (Solver, error) {
	if id == "" {
		return Solver{}, fmt.Errorf("solver id: %w", ErrMissingField)
	}
	var out Solver
	if err := c.getJSON(ctx, "/solvers/"+url.PathEscape(id), nil, &out); err != nil {
		return Solver{}, err
	}
	return out, nil
}
