package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dosanma1/xcforge/internal/config"
	"github.com/dosanma1/xcforge/internal/ui"
)

var validateTools bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate xcforge.yaml",
	Long: `Validates xcforge.yaml against the JSON Schema, resolves the target matrix
and checks the crate manifest declares the crate types and profile the
bundle needs. Nothing is built.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateTools, "tools", false, "Also check required tools are on PATH")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path, err := findConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "🔍 Validating %s...\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		var se *config.SchemaError
		if errors.As(err, &se) {
			fmt.Fprintf(out, "%s Validation failed with %d error(s):\n", ui.IconError, len(se.Problems))
			for _, p := range se.Problems {
				fmt.Fprintf(out, "  - %s\n", p)
			}
		}
		return err
	}

	plan, err := config.NewResolver(cfg).Resolve(config.Overrides{})
	if err != nil {
		return err
	}
	if err := checkCrate(plan); err != nil {
		return err
	}
	if validateTools {
		if err := checkTools(plan.SkipProvision); err != nil {
			return err
		}
	}

	ref, _ := plan.Matrix.Reference()
	fmt.Fprintf(out, "%s %s is valid\n", ui.IconSuccess, path)
	fmt.Fprintf(out, "   targets:   %d (reference %s)\n", plan.Matrix.Len(), ref.Triple)
	fmt.Fprintf(out, "   platforms: %v\n", plan.Matrix.Platforms())
	fmt.Fprintf(out, "   bundle:    %s\n", plan.BundlePath)
	return nil
}
