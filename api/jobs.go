package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SubmitPlan posts a PDDL planning job.
//
// Domain and problem are passed through [PreparePDDL] first. A 202 answer
// yields a pending [Submission] to poll with [Client.GetPlan]; a 200/201
// answer carries the finished result in Submission.Body. Any other status
// is returned as an *APIError.
func (c *Client) SubmitPlan(ctx context.Context, req PlanRequest) (Submission, error) {
	req.Domain = PreparePDDL(req.Domain)
	req.Problem = PreparePDDL(req.Problem)
	if req.Domain == "" {
		return Submission{}, fmt.Errorf("domain: %w", ErrMissingField)
	}
	if req.Problem == "" {
		return Submission{}, fmt.Errorf("problem: %w", ErrMissingField)
	}

	query := url.Values{}
	if req.PlannerID != "" {
		query.Set("planner_id", req.PlannerID)
	}
	if req.ConvertRealTypes != nil {
		query.Set("convert_real_types", strconv.FormatBool(*req.ConvertRealTypes))
	}

	return c.submit(ctx, "/solve/pddl", query, req)
}

// GetPlan fetches the status of a planning job.
//
// Only transport failures are returned as errors; 202, 404 and 5xx answers
// are handed back in the [JobResponse] for the caller to classify.
func (c *Client) GetPlan(ctx context.Context, id string) (JobResponse, error) {
	return c.job(ctx, "/solve/pddl", id)
}

// SubmitSolve posts a MiniZinc solving job. Params may be nil.
func (c *Client) SubmitSolve(ctx context.Context, req SolveRequest) (Submission, error) {
	if req.Model == "" {
		return Submission{}, fmt.Errorf("model: %w", ErrMissingField)
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}

	query := url.Values{}
	if req.SolverName != "" {
		query.Set("solver_name", req.SolverName)
	}

	return c.submit(ctx, "/solve/minizinc", query, req)
}

// GetSolve fetches the status of a MiniZinc job. See [Client.GetPlan].
func (c *Client) GetSolve(ctx context.Context, id string) (JobResponse, error) {
	return c.job(ctx, "/solve/minizinc", id)
}

func (c *Client) submit(ctx context.Context, path string, query url.Values, body any) (Submission, error) {
	resp, err := c.do(ctx, http.MethodPost, path, query, body)
	if err != nil {
		return Submission{}, err
	}

	if resp.StatusCode != http.StatusAccepted && !IsSuccess(resp.StatusCode) {
		return Submission{}, newAPIError(resp.StatusCode, resp.Body)
	}

	sub := Submission{StatusCode: resp.StatusCode, Body: resp.Body}
	if len(resp.Body) > 0 {
		// the id may be absent on a synchronous result
		_ = json.Unmarshal(resp.Body, &sub)
	}
	if sub.Pending() && sub.ID == "" {
		return Submission{}, fmt.Errorf("submission accepted without a job id")
	}

	c.logger.Debug("job submitted", "path", path, "job_id", sub.ID, "status_code", sub.StatusCode)
	return sub, nil
}

func (c *Client) job(ctx context.Context, path, id string) (JobResponse, error) {
	if id == "" {
		return JobResponse{}, fmt.Errorf("job id: %w", ErrMissingField)
	}
	resp, err := c.do(ctx, http.MethodGet, path, url.Values{"id": {id}}, nil)
	if err != nil {
		return JobResponse{}, err
	}
	return JobResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// DecodePlan decodes a finished planning job body.
func DecodePlan(body []byte) (PlanResult, error) {
	var r PlanResult
	if err := json.Unmarshal(body, &r); err != nil {
		return PlanResult{}, fmt.Errorf("failed to decode plan: %w", err)
	}
	return r, nil
}

// DecodeSolve decodes a finished MiniZinc job body.
func DecodeSolve(body []byte) (SolveResult, error) {
	var r SolveResult
	if err := json.Unmarshal(body, &r); err != nil {
		return SolveResult{}, fmt.Errorf("failed to decode solution: %w", err)
	}
	return r, nil
}
