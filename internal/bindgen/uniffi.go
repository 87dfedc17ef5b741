// Package bindgen invokes the foreign-language binding generator against the
// reference target's dynamic library.
package bindgen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/logger"
	"github.com/dosanma1/xcforge/internal/toolchain"
)

// DefaultCommand runs the generator binary shipped inside the crate workspace.
var DefaultCommand = []string{"cargo", "run", "--bin", "uniffi-bindgen", "--"}

var sourceExt = map[string]string{
	"swift":  ".swift",
	"kotlin": ".kt",
	"python": ".py",
	"ruby":   ".rb",
}

// Config configures the uniffi invocation.
type Config struct {
	// Command is the generator command line up to the "generate" subcommand.
	Command []string
	// Language is the target binding language, e.g. "swift".
	Language string
	// Module is the FFI module name; the generator emits <Module>.h and
	// <Module>.modulemap.
	Module string
	// WorkspaceRoot is the absolute directory the generator runs in.
	WorkspaceRoot string
}

// Uniffi runs uniffi-bindgen in library mode.
type Uniffi struct {
	runner toolchain.Runner
	cfg    Config
}

// NewUniffi creates a generator.
func NewUniffi(runner toolchain.Runner, cfg Config) *Uniffi {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand
	}
	if cfg.Language == "" {
		cfg.Language = "swift"
	}
	return &Uniffi{runner: runner, cfg: cfg}
}

// Generate produces bindings for lib into outDir. outDir is emptied first
// because the generator does not remove files from earlier runs.
func (u *Uniffi) Generate(ctx context.Context, lib domain.BuildArtifact, outDir string) (*domain.BindingOutput, error) {
	if err := checkLibrary(lib); err != nil {
		return nil, domain.NewStageError(domain.StageGenerate, err)
	}
	if !filepath.IsAbs(outDir) {
		return nil, domain.NewStageError(domain.StageGenerate, fmt.Errorf("output dir must be absolute, got %q", outDir))
	}
	if err := os.RemoveAll(outDir); err != nil {
		return nil, domain.NewStageError(domain.StageGenerate, fmt.Errorf("clear %s: %w", outDir, err))
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, domain.NewStageError(domain.StageGenerate, err)
	}

	log := logger.L().With("stage", domain.StageGenerate, "library", lib.Path)
	log.Info("generate.start", "language", u.cfg.Language)

	args := append([]string{}, u.cfg.Command[1:]...)
	args = append(args,
		"generate",
		"--library", lib.Path,
		"--language", u.cfg.Language,
		"--out-dir", outDir,
		"--no-format",
	)
	if _, err := u.runner.Run(ctx, toolchain.Command{Name: u.cfg.Command[0], Args: args, Dir: u.cfg.WorkspaceRoot}); err != nil {
		return nil, toolchain.StageFailure(domain.StageGenerate, "", err)
	}

	out, err := u.collect(outDir)
	if err != nil {
		return nil, domain.NewStageError(domain.StageGenerate, err)
	}
	log.Info("generate.done", "sources", len(out.SourceFiles), "header", out.Header)
	return out, nil
}

// collect finds the generated sources, header and module map in dir.
func (u *Uniffi) collect(dir string) (*domain.BindingOutput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	ext := sourceExt[u.cfg.Language]
	out := &domain.BindingOutput{Dir: dir}
	var headers, maps []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(dir, name)
		switch {
		case strings.HasSuffix(name, ".h"):
			headers = append(headers, path)
		case strings.HasSuffix(name, ".modulemap"):
			maps = append(maps, path)
		case ext != "" && strings.HasSuffix(name, ext):
			out.SourceFiles = append(out.SourceFiles, path)
		}
	}
	sort.Strings(out.SourceFiles)

	if out.Header, err = pick(headers, u.cfg.Module, ".h"); err != nil {
		return nil, err
	}
	if out.ModuleMap, err = pick(maps, u.cfg.Module, ".modulemap"); err != nil {
		return nil, err
	}
	if len(out.SourceFiles) == 0 && ext != "" {
		return nil, fmt.Errorf("generator produced no %s sources in %s", ext, dir)
	}
	return out, nil
}

// pick chooses <module><ext> when module is known, otherwise the only candidate.
func pick(candidates []string, module, ext string) (string, error) {
	if module != "" {
		for _, c := range candidates {
			if filepath.Base(c) == module+ext {
				return c, nil
			}
		}
		return "", fmt.Errorf("generator did not produce %s%s", module, ext)
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("generator produced no %s file", ext)
	case 1:
		return candidates[0], nil
	default:
		return "", fmt.Errorf("generator produced several %s files, set bindings.module: %v", ext, candidates)
	}
}

func checkLibrary(lib domain.BuildArtifact) error {
	if lib.Kind != domain.ArtifactDynamicLibrary {
		return fmt.Errorf("binding generation needs a dynamic library, got %s", lib.Kind)
	}
	switch filepath.Ext(lib.Path) {
	case ".dylib", ".so":
	default:
		return fmt.Errorf("%s is not a dynamic library", lib.Path)
	}
	info, err := os.Stat(lib.Path)
	if err != nil {
		return fmt.Errorf("dynamic library missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("dynamic library %s is empty", lib.Path)
	}
	return nil
}
