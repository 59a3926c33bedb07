package api

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// PDDLType selects which half of a planning task an operation works on.
type PDDLType string

const (
	PDDLDomain  PDDLType = "domain"
	PDDLProblem PDDLType = "problem"
)

// ResultSuccess is the result_status value the API uses for a passing check.
const ResultSuccess = "success"

// Planner describes one entry of the planner catalog.
type Planner struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Solver describes one entry of the MiniZinc solver catalog.
type Solver struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PlanRequest is a PDDL planning job.
type PlanRequest struct {
	Domain  string `json:"domain"`
	Problem string `json:"problem"`

	// PlannerID selects a planner. Empty lets the server choose.
	PlannerID string `json:"-"`

	// ConvertRealTypes asks the server to rewrite real-valued types.
	// nil leaves the server default.
	ConvertRealTypes *bool `json:"-"`
}

// SolveRequest is a MiniZinc solving job.
type SolveRequest struct {
	Model  string         `json:"model_str"`
	Params map[string]any `json:"model_params"`

	// SolverName selects a solver. Empty lets the server choose.
	SolverName string `json:"-"`
}

// Submission is the API's answer to a job submission.
//
// A 202 answer carries the job id to poll; a 200/201 answer means the job
// finished synchronously and Body already holds the result.
type Submission struct {
	ID         string          `json:"id"`
	StatusCode int             `json:"-"`
	Body       json.RawMessage `json:"-"`
}

// Pending reports whether the job has to be polled for its result.
func (s Submission) Pending() bool {
	return s.StatusCode == http.StatusAccepted
}

// JobResponse is the raw answer to a job status request. The status code is
// not interpreted; see the root package poller for that.
type JobResponse struct {
	StatusCode int
	Body       []byte
}

// PlanResult is the decoded body of a finished planning job.
type PlanResult struct {
	Plan      string `json:"plan"`
	PlannerID string `json:"planner_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// SolveResult is the decoded body of a finished MiniZinc job.
type SolveResult struct {
	Status     string          `json:"status"`
	Solution   json.RawMessage `json:"solution,omitempty"`
	Statistics json.RawMessage `json:"statistics,omitempty"`
	SolverID   string          `json:"solver_id,omitempty"`
}

// MiniZinc solution statuses reported by the solver.
const (
	SolutionOptimal       = "OPTIMAL_SOLUTION"
	SolutionSatisfied     = "SATISFIED"
	SolutionUnsatisfiable = "UNSATISFIABLE"
)

// Solved reports whether the solver produced an assignment.
func (r SolveResult) Solved() bool {
	return r.Status == SolutionOptimal || r.Status == SolutionSatisfied
}

// UnmarshalJSON accepts both the flat shape and the nested
// {"solution": {"status": ..., "solution": ...}} shape.
func (r *SolveResult) UnmarshalJSON(data []byte) error {
	type plain SolveResult
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	if p.Status == "" && len(p.Solution) > 0 && p.Solution[0] == '{' {
		var inner plain
		if json.Unmarshal(p.Solution, &inner) == nil && inner.Status != "" {
			p.Status = inner.Status
			p.Solution = inner.Solution
			if len(inner.Statistics) > 0 {
				p.Statistics = inner.Statistics
			}
		}
	}
	*r = SolveResult(p)
	return nil
}

// ValidationResult is the answer of the validate endpoints.
type ValidationResult struct {
	ResultStatus string `json:"result_status"`
	Message      string `json:"message"`
}

// Valid reports whether the server accepted the input.
func (v ValidationResult) Valid() bool {
	return v.ResultStatus == ResultSuccess
}

// ConversionResult is the answer of the convert endpoints.
type ConversionResult struct {
	ResultStatus     string          `json:"result_status"`
	ConversionResult json.RawMessage `json:"conversion_result"`
	Message          string          `json:"message,omitempty"`
}

// OK reports whether the conversion succeeded.
func (c ConversionResult) OK() bool {
	return c.ResultStatus == ResultSuccess
}

// Text returns the converted output. A JSON string result is returned
// unquoted; any other JSON value is returned indented.
func (c ConversionResult) Text() string {
	if len(c.ConversionResult) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(c.ConversionResult, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, c.ConversionResult, "", "  "); err != nil {
		return string(c.ConversionResult)
	}
	return buf.String()
}
