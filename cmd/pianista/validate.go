package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pianista-dev/pianista"
	"github.com/pianista-dev/pianista/api"
	"github.com/pianista-dev/pianista/config"
)

// validateCmd groups the validation subcommands.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file, PDDL or a plan",
	Long: `Validate configuration locally, or PDDL and plans with the Pianista API.

Exit codes:
  0 - Input is valid
  1 - Input is invalid (details printed to stderr)`,
}

// validateConfigCmd validates a config file without contacting the API.
var validateConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate a config file",
	Long: `Validate a pianista configuration file without contacting the API.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Example:
  pianista validate config -c pianista.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidateConfig,
}

// validatePDDLCmd checks the syntax of a domain or problem.
var validatePDDLCmd = &cobra.Command{
	Use:   "pddl FILE",
	Short: "Check the syntax of a PDDL domain or problem",
	Long: `Check the syntax of a PDDL domain or problem.

Example:
  pianista validate pddl domain.pddl
  pianista validate pddl problem.pddl --type problem`,
	Args: cobra.ExactArgs(1),
	RunE: runValidatePDDL,
}

// validateMatchCmd checks that a problem fits a domain.
var validateMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Check that a problem matches a domain",
	Args:  cobra.NoArgs,
	RunE:  runValidateMatch,
}

// validatePlanCmd checks a plan against its domain and problem.
var validatePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Check a plan against its domain and problem",
	Args:  cobra.NoArgs,
	RunE:  runValidatePlan,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validateConfigCmd, validatePDDLCmd, validateMatchCmd, validatePlanCmd)

	validatePDDLCmd.Flags().String("type", string(api.PDDLDomain), "PDDL type: domain or problem")

	for _, c := range []*cobra.Command{validateMatchCmd, validatePlanCmd} {
		c.Flags().StringP("domain", "d", "", "path to the PDDL domain (required)")
		c.Flags().StringP("problem", "p", "", "path to the PDDL problem (required)")
		_ = c.MarkFlagRequired("domain")
		_ = c.MarkFlagRequired("problem")
	}
	validatePlanCmd.Flags().String("plan", "", "path to the plan (required)")
	_ = validatePlanCmd.MarkFlagRequired("plan")
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return fmt.Errorf("a config file is required (-c)")
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  API:           %s\n", cfg.API.BaseURL)
	fmt.Fprintf(out, "  API key:       %s\n", keyState(cfg.API.APIKey))
	fmt.Fprintf(out, "  Plan polling:  %s\n", describePolicy(cfg.PlanPolicy(), cfg.Polling.Plan.IsZero()))
	fmt.Fprintf(out, "  Solve polling: %s\n", describePolicy(cfg.SolvePolicy(), cfg.Polling.Solve.IsZero()))
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Server.Port)

	return nil
}

func keyState(key string) string {
	if key == "" {
		return "not set"
	}
	return "set"
}

func describePolicy(p pianista.BackoffPolicy, preset bool) string {
	s := fmt.Sprintf("%s initial, x%g, capped at %s, %d attempts (up to %s)",
		p.Initial, p.Multiplier, p.Max, p.MaxAttempts, p.WallClockBound().Round(time.Second))
	if preset {
		s += " (preset)"
	}
	return s
}

func runValidatePDDL(cmd *cobra.Command, args []string) error {
	typeName, _ := cmd.Flags().GetString("type")
	pddlType := api.PDDLType(typeName)
	if pddlType != api.PDDLDomain && pddlType != api.PDDLProblem {
		return fmt.Errorf("invalid --type %q (expected domain or problem)", typeName)
	}

	pddl, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	return runValidation(cmd, "PDDL validation", func(ctx context.Context, c *api.Client) (api.ValidationResult, error) {
		return c.ValidatePDDL(ctx, pddl, pddlType)
	})
}

func runValidateMatch(cmd *cobra.Command, args []string) error {
	domain, problem, err := readDomainProblem(cmd)
	if err != nil {
		return err
	}

	return runValidation(cmd, "match validation", func(ctx context.Context, c *api.Client) (api.ValidationResult, error) {
		return c.ValidateMatch(ctx, domain, problem)
	})
}

func runValidatePlan(cmd *cobra.Command, args []string) error {
	domain, problem, err := readDomainProblem(cmd)
	if err != nil {
		return err
	}
	planPath, _ := cmd.Flags().GetString("plan")
	plan, err := readInput(cmd, planPath)
	if err != nil {
		return err
	}

	return runValidation(cmd, "plan validation", func(ctx context.Context, c *api.Client) (api.ValidationResult, error) {
		return c.ValidatePlan(ctx, domain, problem, plan)
	})
}

func readDomainProblem(cmd *cobra.Command) (domain, problem string, err error) {
	domainPath, _ := cmd.Flags().GetString("domain")
	problemPath, _ := cmd.Flags().GetString("problem")
	if domain, err = readInput(cmd, domainPath); err != nil {
		return "", "", err
	}
	if problem, err = readInput(cmd, problemPath); err != nil {
		return "", "", err
	}
	return domain, problem, nil
}

// runValidation calls the API and prints the verdict. An invalid input is
// reported as an error so the exit code reflects it.
func runValidation(cmd *cobra.Command, op string, call func(context.Context, *api.Client) (api.ValidationResult, error)) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	res, err := call(cmd.Context(), e.client)
	if err != nil {
		return friendlyError(err, op)
	}

	out := cmd.OutOrStdout()
	if !res.Valid() {
		failColor.Fprintln(out, "Invalid")
		if res.Message != "" {
			fmt.Fprintln(out, res.Message)
		}
		return fmt.Errorf("%s failed", op)
	}

	successColor.Fprintln(out, "Valid")
	if res.Message != "" {
		fmt.Fprintln(out, res.Message)
	}
	return nil
}
