package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dosanma1/xcforge/internal/config"
	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/logger"
	"github.com/dosanma1/xcforge/internal/matrix"
	"github.com/dosanma1/xcforge/internal/pipeline"
	"github.com/dosanma1/xcforge/internal/ui"
)

var (
	buildTargets       string
	buildReference     string
	buildProfile       string
	buildOutputDir     string
	buildBundle        string
	buildSkipProvision bool
	buildJobs          int
	buildVerbose       bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the XCFramework",
	Long: `Build the library for every target and assemble the XCFramework.

Stages run in order: provision, build, generate, merge, relocate, assemble.
The first failing stage aborts the run and the existing bundle is kept.

Exit codes:
  2   invalid configuration or target matrix
  10  toolchain provisioning failed
  11  a target failed to compile
  12  binding generation failed
  13  archive merge failed
  14  header relocation failed
  15  bundle assembly failed

Examples:
  xcforge build
  xcforge build --targets aarch64-apple-ios,aarch64-apple-ios-sim
  xcforge build --profile release --skip-provision
  xcforge build --output-dir /tmp/xcforge --jobs 2 --verbose`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringVar(&buildTargets, "targets", "", "Comma separated target triples (default: targets from config)")
	buildCmd.Flags().StringVar(&buildReference, "reference", "", "Triple whose dynamic library feeds the binding generator")
	buildCmd.Flags().StringVar(&buildProfile, "profile", "", "Cargo build profile (default: profile from config)")
	buildCmd.Flags().StringVar(&buildOutputDir, "output-dir", "", "Directory for intermediate artifacts")
	buildCmd.Flags().StringVar(&buildBundle, "bundle", "", "Path of the .xcframework to write")
	buildCmd.Flags().BoolVar(&buildSkipProvision, "skip-provision", false, "Do not install toolchain, components or targets")
	buildCmd.Flags().IntVarP(&buildJobs, "jobs", "j", 0, "Concurrent target builds (default: one per CPU)")
	buildCmd.Flags().BoolVarP(&buildVerbose, "verbose", "v", false, "Stream tool output")
}

func buildOverrides(cmd *cobra.Command) config.Overrides {
	o := config.Overrides{
		Targets:    matrix.ParseList(buildTargets),
		Reference:  buildReference,
		Profile:    buildProfile,
		OutputDir:  buildOutputDir,
		BundlePath: buildBundle,
		Jobs:       buildJobs,
	}
	if cmd.Flags().Changed("skip-provision") {
		skip := buildSkipProvision
		o.SkipProvision = &skip
	}
	return o
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if buildJobs < 0 {
		return &domain.ConfigError{Err: fmt.Errorf("--jobs must not be negative")}
	}

	cfg, plan, err := resolveBuild(cmd)
	if err != nil {
		return err
	}

	cleanup, err := logger.Setup(logger.Config{Dir: plan.LogDir(), Debug: debug})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	return build(ctx, cmd, cfg, plan)
}

// resolveBuild loads the config and applies the build flags.
func resolveBuild(cmd *cobra.Command) (*config.Config, *pipeline.Plan, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	plan, err := config.NewResolver(cfg).Resolve(buildOverrides(cmd))
	if err != nil {
		return nil, nil, err
	}
	return cfg, plan, nil
}

// build runs one pipeline pass and prints the outcome.
func build(ctx context.Context, cmd *cobra.Command, cfg *config.Config, plan *pipeline.Plan) error {
	out := cmd.OutOrStdout()

	if err := checkCrate(plan); err != nil {
		return err
	}
	if err := checkTools(plan.SkipProvision); err != nil {
		return err
	}

	p, err := newPipeline(cfg, plan, buildVerbose, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %d targets, profile %s\n", ui.TitleStyle.Render("xcforge"), plan.Matrix.Len(), plan.Profile)
	res, err := p.Run(ctx, plan)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s see %s\n", ui.HelpStyle.Render("log:"), logger.Path())
		return err
	}
	ui.Summary(out, res.Bundle, res.Duration)
	return nil
}
