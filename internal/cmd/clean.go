package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dosanma1/xcforge/internal/config"
	"github.com/dosanma1/xcforge/internal/ui"
)

var (
	cleanBundle bool
	cleanYes    bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build intermediates",
	Long: `Remove the output directory with per-target builds, bindings, merged
archives and logs.

Use --bundle to also remove the assembled .xcframework (requires confirmation
unless --yes is given).`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanBundle, "bundle", false, "Also remove the .xcframework")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Do not ask for confirmation")
}

func runClean(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	plan, err := config.NewResolver(cfg).Resolve(config.Overrides{})
	if err != nil {
		return err
	}

	paths := []string{plan.OutputDir}
	if cleanBundle {
		if !cleanYes {
			ok, err := ui.Prompter{}.AskConfirm(fmt.Sprintf("Remove %s", plan.BundlePath), false)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
		}
		paths = append(paths, plan.BundlePath)
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		fmt.Fprintf(out, "🗑️  Removing %s...\n", p)
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}

	fmt.Fprintf(out, "%s Clean completed successfully\n", ui.IconSuccess)
	return nil
}
