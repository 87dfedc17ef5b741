package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dosanma1/xcforge/internal/config"
	"github.com/dosanma1/xcforge/internal/domain"
)

// Version is set at build time.
var Version = "dev"

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "xcforge",
	Short: "Build Rust crates into multi-platform XCFrameworks",
	Long: `xcforge compiles a Rust library for every Apple target, generates Swift
bindings once, merges per-platform archives and assembles an .xcframework.

Configuration is read from xcforge.yaml; command line flags take precedence.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFileName, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Write debug entries to the log file")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &domain.ConfigError{Err: err}
	})
}
