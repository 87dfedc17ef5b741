package cmd

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dosanma1/xcforge/internal/bindgen"
	"github.com/dosanma1/xcforge/internal/builder"
	"github.com/dosanma1/xcforge/internal/config"
	"github.com/dosanma1/xcforge/internal/crate"
	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/headers"
	"github.com/dosanma1/xcforge/internal/lipo"
	"github.com/dosanma1/xcforge/internal/pipeline"
	"github.com/dosanma1/xcforge/internal/toolchain"
	"github.com/dosanma1/xcforge/internal/ui"
	"github.com/dosanma1/xcforge/internal/xcframework"
)

// findConfig resolves the config path. The default name is looked up in
// the current directory and its parents.
func findConfig(path string) (string, error) {
	if path != config.DefaultFileName {
		return path, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, config.DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", &domain.ConfigError{
		Path: config.DefaultFileName,
		Err:  fmt.Errorf("not found in current directory or any parent directory (run 'xcforge setup'): %w", fs.ErrNotExist),
	}
}

func loadConfig() (*config.Config, error) {
	path, err := findConfig(configPath)
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// checkCrate verifies the manifest declares what the bundle needs.
func checkCrate(plan *pipeline.Plan) error {
	ws, err := crate.Find(plan.WorkspaceRoot, plan.Library.Package)
	if err != nil {
		return &domain.ConfigError{Err: err}
	}
	if err := ws.Check(string(plan.Profile)); err != nil {
		return &domain.ConfigError{Err: err}
	}
	if got := ws.Package.LibraryName(); got != plan.Library.Name {
		return &domain.ConfigError{Err: fmt.Errorf("library.name is %q but %s builds %q", plan.Library.Name, ws.Package.Path, got)}
	}
	return nil
}

// newPipeline wires the real tool adapters.
func newPipeline(cfg *config.Config, plan *pipeline.Plan, verbose bool, out io.Writer) (*pipeline.Pipeline, error) {
	resolver := config.NewResolver(cfg)
	runner := toolchain.NewExecutor(verbose)

	b, err := builder.Get(cfg.Builder, runner)
	if err != nil {
		return nil, &domain.ConfigError{Err: err}
	}

	p := &pipeline.Pipeline{
		Builder: b,
		Generator: bindgen.NewUniffi(runner, bindgen.Config{
			Command:       cfg.Bindings.Command,
			Language:      cfg.Bindings.Language,
			Module:        resolver.ResolveModule(),
			WorkspaceRoot: plan.WorkspaceRoot,
		}),
		Merger: lipo.NewFromPath(runner),
		Relocator: headers.NewRelocator(headers.Config{
			HeadersDir: plan.HeadersDir(),
			SourcesDir: resolver.ResolveSourcesDir(),
		}),
		Assembler: xcframework.NewAssembler(runner, plan.Matrix.Platforms()),
		Observer:  ui.NewProgress(out, verbose),
	}
	if !plan.SkipProvision {
		p.Provisioner = toolchain.NewRustup(runner, toolchain.RustupConfig{
			Channel:    cfg.Toolchain.Channel,
			Components: cfg.Toolchain.Components,
			Dir:        plan.WorkspaceRoot,
		})
	}
	return p, nil
}

// checkTools fails the provision stage when a required tool is missing.
func checkTools(skipProvision bool) error {
	if err := toolchain.CheckRequiredTools(toolchain.PipelineTools(!skipProvision)); err != nil {
		return domain.NewStageError(domain.StageProvision, err)
	}
	return nil
}

func absFrom(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
