package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pianista-dev/pianista"
)

const defaultWaitConcurrency = 4

// waitCmd polls jobs that were submitted earlier.
var waitCmd = &cobra.Command{
	Use:   "wait JOB_ID...",
	Short: "Wait for previously submitted jobs",
	Long: `Poll one or more jobs until they finish and print their results.

With a single job the result is printed as by 'plan' or 'solve'. With
several jobs they are polled concurrently and a summary table is printed.

Example:
  pianista wait --kind plan 3f2c9a
  pianista wait --kind solve job-1 job-2 job-3 --concurrency 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)

	waitCmd.Flags().String("kind", string(pianista.JobKindPlan), "job kind: plan or solve")
	waitCmd.Flags().Int("concurrency", defaultWaitConcurrency, "maximum jobs polled at once")
	waitCmd.Flags().Bool("json", false, "print the raw JSON result (single job only)")
}

// waitOutcome is one row of the summary table.
type waitOutcome struct {
	id    string
	state pianista.State
	err   error
}

func runWait(cmd *cobra.Command, args []string) error {
	kindName, _ := cmd.Flags().GetString("kind")
	kind := pianista.JobKind(kindName)
	if !kind.Valid() {
		return fmt.Errorf("invalid --kind %q (expected plan or solve)", kindName)
	}
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	if concurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1, got %d", concurrency)
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(args) == 1 {
		st, err := pollJob(ctx, e, kind, args[0], cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		return printResult(cmd.OutOrStdout(), kind, st.Result, asJSON)
	}

	// each job gets its own poller; failures are collected, not fatal
	outcomes := make([]waitOutcome, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range args {
		g.Go(func() error {
			st, err := pollJob(gctx, e, kind, id, nil)
			outcomes[i] = waitOutcome{id: id, state: st, err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := renderOutcomes(cmd, kind, outcomes)
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs did not succeed", failed, len(outcomes))
	}
	return nil
}

// renderOutcomes prints the summary table and returns the number of
// jobs that did not succeed.
func renderOutcomes(cmd *cobra.Command, kind pianista.JobKind, outcomes []waitOutcome) int {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("Job", "Kind", "Status", "Attempts", "Detail")

	failed := 0
	for _, o := range outcomes {
		status := o.state.Status
		detail := ""
		if o.err != nil {
			failed++
			detail = o.err.Error()
			if status == "" || status == pianista.StatusSucceeded {
				status = pianista.StatusFailed
			}
		} else {
			detail = resultSummary(kind, o.state.Result)
		}
		_ = table.Append(
			o.id,
			string(kind),
			statusColor(status).Sprint(status.String()),
			strconv.Itoa(o.state.Attempt),
			detail,
		)
	}

	if err := table.Render(); err != nil {
		failColor.Fprintln(cmd.ErrOrStderr(), "Error rendering results table")
	}
	return failed
}
