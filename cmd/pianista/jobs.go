package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pianista-dev/pianista"
	"github.com/pianista-dev/pianista/api"
)

// planCmd submits a PDDL planning job.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Submit a PDDL planning job and wait for the plan",
	Long: `Submit a PDDL domain and problem to Pianista and wait for the plan.

The job is polled with exponential backoff (5s, x1.5, capped at 60s, 25
attempts by default; see polling.plan in the config file). A countdown to
the next status request is shown on stderr.

Use - as a file name to read from stdin.

Example:
  pianista plan -d domain.pddl -p problem.pddl
  pianista plan -d domain.pddl -p problem.pddl --planner enhsp --no-wait`,
	RunE: runPlan,
}

// solveCmd submits a MiniZinc job.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Submit a MiniZinc model and wait for the solution",
	Long: `Submit a MiniZinc model (and optional parameters) to Pianista and wait
for the solution.

Parameters are read from a YAML or JSON file and sent as model_params.

Example:
  pianista solve -m model.mzn
  pianista solve -m model.mzn --params data.yaml --solver gecode`,
	RunE: runSolve,
}

func init() {
	rootCmd.AddCommand(planCmd, solveCmd)

	planCmd.Flags().StringP("domain", "d", "", "path to the PDDL domain (required)")
	planCmd.Flags().StringP("problem", "p", "", "path to the PDDL problem (required)")
	planCmd.Flags().String("planner", "", "planner id (see 'pianista planners')")
	planCmd.Flags().Bool("convert-real-types", false, "ask the server to convert real-valued types")
	planCmd.Flags().Bool("no-wait", false, "print the job id and exit without polling")
	planCmd.Flags().Bool("json", false, "print the raw JSON result")
	_ = planCmd.MarkFlagRequired("domain")
	_ = planCmd.MarkFlagRequired("problem")

	solveCmd.Flags().StringP("model", "m", "", "path to the MiniZinc model (required)")
	solveCmd.Flags().String("params", "", "path to a YAML or JSON file with model parameters")
	solveCmd.Flags().String("solver", "", "solver name (see 'pianista solvers')")
	solveCmd.Flags().Bool("no-wait", false, "print the job id and exit without polling")
	solveCmd.Flags().Bool("json", false, "print the raw JSON result")
	_ = solveCmd.MarkFlagRequired("model")
}

func runPlan(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	domainPath, _ := cmd.Flags().GetString("domain")
	problemPath, _ := cmd.Flags().GetString("problem")
	domain, err := readInput(cmd, domainPath)
	if err != nil {
		return err
	}
	problem, err := readInput(cmd, problemPath)
	if err != nil {
		return err
	}

	req := api.PlanRequest{Domain: domain, Problem: problem}
	req.PlannerID, _ = cmd.Flags().GetString("planner")
	if cmd.Flags().Changed("convert-real-types") {
		v, _ := cmd.Flags().GetBool("convert-real-types")
		req.ConvertRealTypes = &v
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := e.client.SubmitPlan(ctx, req)
	if err != nil {
		return friendlyError(err, "plan submission")
	}
	return finishSubmission(ctx, cmd, e, pianista.JobKindPlan, sub)
}

func runSolve(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	modelPath, _ := cmd.Flags().GetString("model")
	model, err := readInput(cmd, modelPath)
	if err != nil {
		return err
	}

	req := api.SolveRequest{Model: model}
	req.SolverName, _ = cmd.Flags().GetString("solver")
	if paramsPath, _ := cmd.Flags().GetString("params"); paramsPath != "" {
		raw, err := readInput(cmd, paramsPath)
		if err != nil {
			return err
		}
		// JSON is valid YAML, so one decoder covers both formats
		if err := yaml.Unmarshal([]byte(raw), &req.Params); err != nil {
			return fmt.Errorf("failed to parse params %s: %w", displayName(paramsPath), err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sub, err := e.client.SubmitSolve(ctx, req)
	if err != nil {
		return friendlyError(err, "solve submission")
	}
	return finishSubmission(ctx, cmd, e, pianista.JobKindSolve, sub)
}

// finishSubmission prints a synchronous result, or polls a pending job
// unless --no-wait is set.
func finishSubmission(ctx context.Context, cmd *cobra.Command, e *env, kind pianista.JobKind, sub api.Submission) error {
	out := cmd.OutOrStdout()
	asJSON, _ := cmd.Flags().GetBool("json")

	if !sub.Pending() {
		return printResult(out, kind, sub.Body, asJSON)
	}

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		fmt.Fprintln(out, sub.ID)
		return nil
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s job %s submitted\n", kind, sub.ID)
	st, err := pollJob(ctx, e, kind, sub.ID, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return printResult(out, kind, st.Result, asJSON)
}

// pollJob polls one job to completion. When progress is non-nil a
// countdown to the next request is drawn on it.
func pollJob(ctx context.Context, e *env, kind pianista.JobKind, id string, progress io.Writer) (pianista.State, error) {
	opts := e.cfg.PollerOptions(kind, e.logger)
	if progress != nil {
		cd := &countdown{w: progress}
		defer cd.finish()
		opts = append(opts, pianista.WithOnPending(cd.pending), pianista.WithOnTick(cd.tick))
	}

	var (
		p   *pianista.Poller
		err error
	)
	if kind == pianista.JobKindPlan {
		p, err = pianista.NewPlanPoller(e.client, opts...)
	} else {
		p, err = pianista.NewSolvePoller(e.client, opts...)
	}
	if err != nil {
		return pianista.State{}, err
	}

	if err := p.StartPolling(id); err != nil {
		return pianista.State{}, err
	}
	st, err := p.Wait(ctx)
	if err != nil {
		p.StopPolling()
		return p.Snapshot(), fmt.Errorf("stopped waiting for job %s: %w", id, err)
	}

	switch st.Status {
	case pianista.StatusSucceeded:
		return st, nil
	case pianista.StatusFailed:
		return st, jobError(kind, id, st.Err)
	default:
		return st, fmt.Errorf("job %s ended %s", id, st.Status)
	}
}

// jobError wraps a terminal poll error with the front-end message.
func jobError(kind pianista.JobKind, id string, err error) error {
	op := "plan retrieval"
	if kind == pianista.JobKindSolve {
		op = "solve retrieval"
	}

	var te *pianista.TimeoutError
	var se *pianista.StatusError
	switch {
	case errors.As(err, &te):
		return fmt.Errorf("job %s: %w; run 'pianista wait --kind %s %s' to keep waiting", id, err, kind, id)
	case errors.As(err, &se):
		return fmt.Errorf("job %s: %s (%w)", id, api.StatusMessage(&api.APIError{StatusCode: se.Code, Detail: se.Detail}, op), err)
	default:
		return fmt.Errorf("job %s: %w", id, friendlyError(err, op))
	}
}

// printResult renders a finished job body.
func printResult(w io.Writer, kind pianista.JobKind, body []byte, asJSON bool) error {
	if asJSON {
		return writeJSON(w, body)
	}

	if kind == pianista.JobKindPlan {
		plan, err := api.DecodePlan(body)
		if err != nil || plan.Plan == "" {
			return writeJSON(w, body)
		}
		successColor.Fprintln(w, "Plan found")
		if plan.PlannerID != "" {
			dimColor.Fprintf(w, "planner: %s\n", plan.PlannerID)
		}
		fmt.Fprintln(w, plan.Plan)
		return nil
	}

	res, err := api.DecodeSolve(body)
	if err != nil || res.Status == "" {
		return writeJSON(w, body)
	}
	c := warnColor
	if res.Solved() {
		c = successColor
	}
	c.Fprintln(w, res.Status)
	if len(res.Solution) > 0 {
		return writeJSON(w, []byte(res.Solution))
	}
	return nil
}

// countdown draws the time left before the next status request.
type countdown struct {
	w io.Writer

	mu  sync.Mutex
	bar *progressbar.ProgressBar
	max int
}

func (c *countdown) pending(ps pianista.PendingStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		_ = c.bar.Finish()
	}
	c.max = ps.NextPollIn
	c.bar = progressbar.NewOptions(ps.NextPollIn,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetDescription(fmt.Sprintf("%s [%d/%d] next check in", ps.Message, ps.Attempt, ps.MaxAttempts)),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (c *countdown) tick(secondsLeft int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		_ = c.bar.Set(c.max - secondsLeft)
	}
}

func (c *countdown) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar != nil {
		_ = c.bar.Finish()
		c.bar = nil
	}
}

// resultSummary is a one-line description of a finished job body.
func resultSummary(kind pianista.JobKind, body []byte) string {
	if kind == pianista.JobKindPlan {
		plan, err := api.DecodePlan(body)
		if err != nil || plan.Plan == "" {
			return "no plan in response"
		}
		steps := 0
		for _, line := range strings.Split(plan.Plan, "\n") {
			if line = strings.TrimSpace(line); line != "" && !strings.HasPrefix(line, ";") {
				steps++
			}
		}
		return fmt.Sprintf("%d steps", steps)
	}

	res, err := api.DecodeSolve(body)
	if err != nil || res.Status == "" {
		return "no status in response"
	}
	return res.Status
}
