package toolchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/logger"
)

// RustupConfig configures the rustup-backed provisioner.
type RustupConfig struct {
	// Channel is the toolchain to install, e.g. "stable" or "nightly".
	Channel    string
	Components []string
	// Dir is the absolute directory rustup runs in, usually the crate root
	// so rust-toolchain.toml files are honoured.
	Dir string
}

// Rustup installs the compiler toolchain, components and per-target
// standard libraries.
type Rustup struct {
	runner Runner
	cfg    RustupConfig
}

// NewRustup creates a rustup provisioner.
func NewRustup(runner Runner, cfg RustupConfig) *Rustup {
	if cfg.Channel == "" {
		cfg.Channel = "stable"
	}
	return &Rustup{runner: runner, cfg: cfg}
}

// Ensure makes the toolchain, its components and every target's standard
// library available. It is safe to call repeatedly.
func (r *Rustup) Ensure(ctx context.Context, targets []domain.Target) error {
	log := logger.L().With("stage", domain.StageProvision, "channel", r.cfg.Channel)

	if _, err := r.run(ctx, "toolchain", "install", r.cfg.Channel, "--profile", "minimal"); err != nil {
		return StageFailure(domain.StageProvision, "", err)
	}

	for _, c := range r.cfg.Components {
		if _, err := r.run(ctx, "component", "add", c, "--toolchain", r.cfg.Channel); err != nil {
			return StageFailure(domain.StageProvision, "", err)
		}
	}

	installed, err := r.installedTargets(ctx)
	if err != nil {
		return StageFailure(domain.StageProvision, "", err)
	}

	var missing []string
	for _, t := range targets {
		if !installed[t.Triple] {
			missing = append(missing, t.Triple)
		}
	}
	if len(missing) == 0 {
		log.Info("provision.up_to_date", "targets", len(targets))
		return nil
	}

	args := append([]string{"target", "add", "--toolchain", r.cfg.Channel}, missing...)
	if _, err := r.run(ctx, args...); err != nil {
		return StageFailure(domain.StageProvision, "", err)
	}
	log.Info("provision.targets_added", "targets", strings.Join(missing, ","))
	return nil
}

// Version returns the active rustc version of the configured channel.
func (r *Rustup) Version(ctx context.Context) (string, error) {
	res, err := r.run(ctx, "run", r.cfg.Channel, "rustc", "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(res.Output)), nil
}

func (r *Rustup) installedTargets(ctx context.Context) (map[string]bool, error) {
	res, err := r.run(ctx, "target", "list", "--installed", "--toolchain", r.cfg.Channel)
	if err != nil {
		return nil, fmt.Errorf("list installed targets: %w", err)
	}
	out := map[string]bool{}
	for _, line := range strings.Split(string(res.Output), "\n") {
		if s := strings.TrimSpace(line); s != "" {
			out[s] = true
		}
	}
	return out, nil
}

func (r *Rustup) run(ctx context.Context, args ...string) (*Result, error) {
	return r.runner.Run(ctx, Command{Name: "rustup", Args: args, Dir: r.cfg.Dir})
}
