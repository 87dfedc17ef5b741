package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dosanma1/xcforge/internal/logger"
	"github.com/dosanma1/xcforge/internal/ui"
	"github.com/dosanma1/xcforge/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the XCFramework when sources change",
	Long: `Build once, then rebuild whenever a Rust source, Cargo manifest, UDL file
or xcforge.yaml changes. Build flags are the same as for 'xcforge build'.
A failed rebuild keeps the previous bundle and waits for the next change.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().AddFlagSet(buildCmd.Flags())
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, plan, err := resolveBuild(cmd)
	if err != nil {
		return err
	}

	cleanup, err := logger.Setup(logger.Config{Dir: plan.LogDir(), Debug: debug})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	roots := []string{plan.WorkspaceRoot}
	if cfg.Dir() != plan.WorkspaceRoot {
		roots = append(roots, cfg.Dir())
	}
	for _, p := range cfg.Watch.Paths {
		roots = append(roots, absFrom(cfg.Dir(), p))
	}
	w, err := watch.NewWatcher(watch.Config{
		Roots:       roots,
		Patterns:    cfg.Watch.Patterns,
		IgnoreNames: watch.DefaultIgnoreNames,
		IgnoreDirs:  []string{plan.OutputDir, plan.BundlePath},
		Debounce:    cfg.Watch.Debounce,
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()
	go w.Run(ctx)

	out := cmd.OutOrStdout()
	loop := &watch.Loop{
		Source: w,
		Rebuild: func(ctx context.Context, changes []watch.Event) error {
			for _, c := range changes {
				fmt.Fprintf(out, "%s %s\n", ui.HelpStyle.Render(c.Type.String()), c.Path)
			}
			if changes != nil {
				// xcforge.yaml may be among the changes
				var err error
				if cfg, plan, err = resolveBuild(cmd); err != nil {
					return err
				}
			}
			return build(ctx, cmd, cfg, plan)
		},
		OnResult: func(err error) {
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", ui.IconError, ui.ErrorStyle.Render(ui.Headline(err)))
			}
			fmt.Fprintf(out, "%s\n", ui.HelpStyle.Render("watching for changes (ctrl+c to stop)"))
		},
	}
	return loop.Run(ctx)
}
