package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pianista-dev/pianista/api"
)

// plannersCmd lists available planners.
var plannersCmd = &cobra.Command{
	Use:   "planners [ID]",
	Short: "List the available PDDL planners",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlanners,
}

// solversCmd lists available MiniZinc solvers.
var solversCmd = &cobra.Command{
	Use:   "solvers [ID]",
	Short: "List the available MiniZinc solvers",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSolvers,
}

// catalogCmd fetches both catalogs at once.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List planners and solvers",
	Long: `Fetch the planner and solver catalogs concurrently and print both.

Example:
  pianista catalog --json`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	rootCmd.AddCommand(plannersCmd, solversCmd, catalogCmd)

	for _, c := range []*cobra.Command{plannersCmd, solversCmd, catalogCmd} {
		c.Flags().Bool("json", false, "print JSON instead of a table")
	}
}

func runPlanners(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	var planners []api.Planner
	if len(args) == 1 {
		p, err := e.client.Planner(cmd.Context(), args[0])
		if err != nil {
			return friendlyError(err, "planner lookup")
		}
		planners = []api.Planner{p}
	} else if planners, err = e.client.Planners(cmd.Context()); err != nil {
		return friendlyError(err, "planner listing")
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), planners)
	}
	return renderCatalog(cmd, "Planner", toRows(planners, func(p api.Planner) []string {
		return []string{p.ID, p.Name, p.Description}
	}))
}

func runSolvers(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	var solvers []api.Solver
	if len(args) == 1 {
		s, err := e.client.Solver(cmd.Context(), args[0])
		if err != nil {
			return friendlyError(err, "solver lookup")
		}
		solvers = []api.Solver{s}
	} else if solvers, err = e.client.Solvers(cmd.Context()); err != nil {
		return friendlyError(err, "solver listing")
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), solvers)
	}
	return renderCatalog(cmd, "Solver", toRows(solvers, func(s api.Solver) []string {
		return []string{s.ID, s.Name, s.Description}
	}))
}

func runCatalog(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	var (
		planners []api.Planner
		solvers  []api.Solver
	)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		var err error
		planners, err = e.client.Planners(ctx)
		return friendlyError(err, "planner listing")
	})
	g.Go(func() error {
		var err error
		solvers, err = e.client.Solvers(ctx)
		return friendlyError(err, "solver listing")
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"planners": planners,
			"solvers":  solvers,
		})
	}

	if err := renderCatalog(cmd, "Planner", toRows(planners, func(p api.Planner) []string {
		return []string{p.ID, p.Name, p.Description}
	})); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return renderCatalog(cmd, "Solver", toRows(solvers, func(s api.Solver) []string {
		return []string{s.ID, s.Name, s.Description}
	}))
}

func toRows[T any](items []T, row func(T) []string) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, row(it))
	}
	return rows
}

func renderCatalog(cmd *cobra.Command, kind string, rows [][]string) error {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		dimColor.Fprintf(out, "No %ss available\n", kind)
		return nil
	}

	table := tablewriter.NewWriter(out)
	table.Header(kind+" ID", "Name", "Description")
	for _, r := range rows {
		_ = table.Append(r[0], r[1], r[2])
	}
	return table.Render()
}
