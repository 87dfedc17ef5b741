package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dosanma1/xcforge/internal/config"
	"github.com/dosanma1/xcforge/internal/crate"
	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/matrix"
	"github.com/dosanma1/xcforge/internal/toolchain"
	"github.com/dosanma1/xcforge/internal/ui"
)

var (
	setupPackage   string
	setupYes       bool
	setupProvision bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create xcforge.yaml and check the build environment",
	Long: `Setup the xcforge configuration for the crate in the current directory.

This command:
- Reads Cargo.toml to find the library package and name
- Writes xcforge.yaml with the default Apple target matrix
- Reports which required tools are on PATH
- Optionally installs the toolchain and targets (--provision)`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVar(&setupPackage, "package", "", "Cargo package to bundle (default: root package)")
	setupCmd.Flags().BoolVarP(&setupYes, "yes", "y", false, "Accept defaults without prompting")
	setupCmd.Flags().BoolVar(&setupProvision, "provision", false, "Install the rust toolchain and targets")
}

func runSetup(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	prompt := ui.Prompter{}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	fmt.Fprintf(out, "%s Setting up xcforge...\n", ui.IconTool)

	ws, err := crate.Find(cwd, setupPackage)
	if err != nil {
		return &domain.ConfigError{Err: err}
	}
	if err := ws.Package.CheckCrateTypes(); err != nil {
		fmt.Fprintf(out, "%s %s\n", ui.IconWarning, ui.WarningStyle.Render(err.Error()))
	}

	cfg := config.NewDefaultConfig(ws.Package.PackageName(), ws.Package.LibraryName())
	if !ws.Root.HasProfile(cfg.Profile) {
		cfg.Profile = "release"
	}

	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	if !setupYes {
		if _, err := os.Stat(path); err == nil {
			ok, err := prompt.AskConfirm(fmt.Sprintf("%s exists. Overwrite", filepath.Base(path)), false)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Cancelled.")
				return nil
			}
		}
		name, err := prompt.AskText("Bundle name", cfg.Bundle.Name)
		if err != nil {
			return err
		}
		cfg.Bundle.Name = name
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s Wrote %s (package %s, library %s, profile %s)\n",
		ui.IconSuccess, path, cfg.Library.Package, cfg.Library.Name, cfg.Profile)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Tools:")
	for _, s := range toolchain.Report(toolchain.PipelineTools(true)) {
		icon := ui.IconSuccess
		if !s.Found {
			icon = ui.IconError
		}
		fmt.Fprintf(out, "   %s %s\n", icon, s)
	}

	if setupProvision {
		m := matrix.Default()
		rustup := toolchain.NewRustup(toolchain.NewExecutor(false), toolchain.RustupConfig{
			Channel:    cfg.Toolchain.Channel,
			Components: cfg.Toolchain.Components,
			Dir:        cwd,
		})
		fmt.Fprintf(out, "\n%s Installing %s toolchain and %d targets...\n", ui.IconPackage, cfg.Toolchain.Channel, m.Len())
		if err := rustup.Ensure(cmd.Context(), m.Targets()); err != nil {
			return err
		}
		if v, err := rustup.Version(cmd.Context()); err == nil {
			fmt.Fprintf(out, "   %s\n", v)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  xcforge validate   # Check the configuration")
	fmt.Fprintln(out, "  xcforge build      # Build the XCFramework")
	return nil
}
