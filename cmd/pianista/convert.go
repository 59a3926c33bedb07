package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pianista-dev/pianista/api"
)

// convertCmd groups the conversion subcommands.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert between PDDL, Mermaid and natural language",
}

var convertMermaidCmd = &cobra.Command{
	Use:   "mermaid FILE",
	Short: "Generate PDDL from a Mermaid diagram",
	Long: `Generate PDDL from a Mermaid diagram.

Pass --domain to generate a problem for an existing domain.

Example:
  pianista convert mermaid diagram.mmd
  pianista convert mermaid diagram.mmd --domain domain.pddl --attempts 3`,
	Args: cobra.ExactArgs(1),
	RunE: runConvertMermaid,
}

var convertNaturalCmd = &cobra.Command{
	Use:   "natural FILE",
	Short: "Generate PDDL from a natural language description",
	Long: `Generate a PDDL domain or problem from a natural language description.

Example:
  pianista convert natural task.txt --type domain --generate-both
  echo "Stack block a on block b" | pianista convert natural - --type problem --domain domain.pddl`,
	Args: cobra.ExactArgs(1),
	RunE: runConvertNatural,
}

var convertToMermaidCmd = &cobra.Command{
	Use:   "to-mermaid FILE",
	Short: "Render a PDDL domain or problem as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvertToMermaid,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.AddCommand(convertMermaidCmd, convertNaturalCmd, convertToMermaidCmd)

	for _, c := range []*cobra.Command{convertMermaidCmd, convertNaturalCmd} {
		c.Flags().String("domain", "", "path to a PDDL domain used as context")
		c.Flags().Int("attempts", 0, "generation attempts (0 keeps the server default)")
	}
	convertNaturalCmd.Flags().String("type", string(api.PDDLDomain), "PDDL type to generate: domain or problem")
	convertNaturalCmd.Flags().Bool("generate-both", false, "generate both domain and problem")
	convertToMermaidCmd.Flags().String("type", string(api.PDDLDomain), "PDDL type of FILE: domain or problem")
}

func pddlTypeFlag(cmd *cobra.Command) (api.PDDLType, error) {
	typeName, _ := cmd.Flags().GetString("type")
	t := api.PDDLType(typeName)
	if t != api.PDDLDomain && t != api.PDDLProblem {
		return "", fmt.Errorf("invalid --type %q (expected domain or problem)", typeName)
	}
	return t, nil
}

// optionalInput reads the file named by flag, or returns "" when unset.
func optionalInput(cmd *cobra.Command, flag string) (string, error) {
	path, _ := cmd.Flags().GetString(flag)
	if path == "" {
		return "", nil
	}
	return readInput(cmd, path)
}

func runConvertMermaid(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	domain, err := optionalInput(cmd, "domain")
	if err != nil {
		return err
	}
	attempts, _ := cmd.Flags().GetInt("attempts")

	return runConversion(cmd, "conversion", func(ctx context.Context, c *api.Client) (api.ConversionResult, error) {
		return c.ConvertMermaid(ctx, text, domain, attempts)
	})
}

func runConvertNatural(cmd *cobra.Command, args []string) error {
	pddlType, err := pddlTypeFlag(cmd)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	domain, err := optionalInput(cmd, "domain")
	if err != nil {
		return err
	}
	attempts, _ := cmd.Flags().GetInt("attempts")
	both, _ := cmd.Flags().GetBool("generate-both")

	return runConversion(cmd, "generation", func(ctx context.Context, c *api.Client) (api.ConversionResult, error) {
		return c.ConvertNatural(ctx, pddlType, text, domain, both, attempts)
	})
}

func runConvertToMermaid(cmd *cobra.Command, args []string) error {
	pddlType, err := pddlTypeFlag(cmd)
	if err != nil {
		return err
	}
	pddl, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}

	return runConversion(cmd, "conversion", func(ctx context.Context, c *api.Client) (api.ConversionResult, error) {
		return c.ConvertToMermaid(ctx, pddlType, pddl)
	})
}

// runConversion calls the API and prints the converted text on stdout.
func runConversion(cmd *cobra.Command, op string, call func(context.Context, *api.Client) (api.ConversionResult, error)) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.client.Close()

	res, err := call(cmd.Context(), e.client)
	if err != nil {
		return friendlyError(err, op)
	}
	if !res.OK() {
		msg := res.Message
		if msg == "" {
			msg = "no details from server"
		}
		return fmt.Errorf("%s failed: %s", op, msg)
	}

	fmt.Fprintln(cmd.OutOrStdout(), res.Text())
	return nil
}
