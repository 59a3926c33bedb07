package api

import (
	"context"
	"fmt"
	"net/url"
)

// ValidatePDDL checks the syntax of a domain or problem. An empty pddlType
// lets the server detect it.
func (c *Client) ValidatePDDL(ctx context.Context, pddl string, pddlType PDDLType) (ValidationResult, error) {
	pddl = PreparePDDL(pddl)
	if pddl == "" {
		return ValidationResult{}, fmt.Errorf("pddl: %w", ErrMissingField)
	}

	query := url.Values{}
	if pddlType != "" {
		query.Set("pddl_type", string(pddlType))
	}

	var out ValidationResult
	err := c.postJSON(ctx, "/validate/pddl", query, map[string]string{"pddl": pddl}, &out)
	return out, err
}

// ValidateMatch checks that a problem is consistent with a domain.
func (c *Client) ValidateMatch(ctx context.Context, domain, problem string) (ValidationResult, error) {
	domain, problem = PreparePDDL(domain), PreparePDDL(problem)
	if domain == "" || problem == "" {
		return ValidationResult{}, fmt.Errorf("domain and problem: %w", ErrMissingField)
	}

	var out ValidationResult
	err := c.postJSON(ctx, "/validate/match/pddl", nil, map[string]string{
		"domain":  domain,
		"problem": problem,
	}, &out)
	return out, err
}

// ValidatePlan checks that plan solves problem under domain.
func (c *Client) ValidatePlan(ctx context.Context, domain, problem, plan string) (ValidationResult, error) {
	domain, problem = PreparePDDL(domain), PreparePDDL(problem)
	plan = NormalizePDDL(plan)
	if domain == "" || problem == "" || plan == "" {
		return ValidationResult{}, fmt.Errorf("domain, problem and plan: %w", ErrMissingField)
	}

	var out ValidationResult
	err := c.postJSON(ctx, "/validate/plan/pddl", nil, map[string]string{
		"domain":  domain,
		"problem": problem,
		"plan":    plan,
	}, &out)
	return out, err
}
