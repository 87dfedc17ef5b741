package pipeline

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/matrix"
)

// Plan is the resolved configuration of one run. Every path is absolute;
// no stage consults the process working directory.
type Plan struct {
	Matrix  *matrix.Matrix
	Profile domain.Profile
	Library domain.Library

	// WorkspaceRoot is the crate root the compiler and generator run in.
	WorkspaceRoot string
	// OutputDir holds per-target builds and per-run intermediates.
	OutputDir string
	// BundlePath is the final .xcframework path.
	BundlePath string
	// ConfigDir is the directory of the configuration file, if any.
	ConfigDir string

	// Toolchain is the rustup channel passed to cargo as +<channel>.
	Toolchain string
	// Env holds extra KEY=VALUE pairs for compiler invocations.
	Env []string

	SkipProvision bool
	// Jobs bounds concurrent target builds; 0 means one per CPU.
	Jobs int
}

// Validate checks the plan before any stage runs.
func (p *Plan) Validate() error {
	if err := p.Matrix.Validate(); err != nil {
		return err
	}

	var problems []string
	for name, path := range map[string]string{
		"workspace root": p.WorkspaceRoot,
		"output dir":     p.OutputDir,
		"bundle path":    p.BundlePath,
	} {
		if !filepath.IsAbs(path) {
			problems = append(problems, fmt.Sprintf("%s must be absolute, got %q", name, path))
		}
	}
	if len(problems) == 0 {
		problems = append(problems, p.overlaps()...)
	}
	if p.Profile == "" {
		problems = append(problems, "profile is required")
	}
	if p.Library.Package == "" || p.Library.Name == "" {
		problems = append(problems, "library package and name are required")
	}
	if p.Jobs < 0 {
		problems = append(problems, "jobs must not be negative")
	}
	if len(problems) > 0 {
		return &domain.ConfigError{Err: fmt.Errorf("%s", strings.Join(problems, "; "))}
	}
	return nil
}

// overlaps reports output locations that would remove or overwrite the
// crate. OutputDir is deleted by clean and the run directories are
// recreated on every build.
func (p *Plan) overlaps() []string {
	var problems []string
	protected := map[string]string{"workspace root": p.WorkspaceRoot}
	if p.ConfigDir != "" {
		protected["config directory"] = p.ConfigDir
	}
	for name, dir := range protected {
		if within(p.OutputDir, dir) {
			problems = append(problems, fmt.Sprintf("output dir %s must not be or contain the %s %s", p.OutputDir, name, dir))
		}
		if within(p.BundlePath, dir) {
			problems = append(problems, fmt.Sprintf("bundle path %s must not be or contain the %s %s", p.BundlePath, name, dir))
		}
	}
	for _, d := range p.runDirs() {
		if within(d, p.BundlePath) || within(p.BundlePath, d) {
			problems = append(problems, fmt.Sprintf("bundle path %s overlaps the per-run directory %s", p.BundlePath, d))
		}
	}
	sort.Strings(problems)
	return problems
}

// within reports whether path is dir or one of its descendants.
func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Parallelism returns the effective build concurrency.
func (p *Plan) Parallelism() int {
	if p.Jobs > 0 {
		return p.Jobs
	}
	return runtime.NumCPU()
}

// TargetDir is the target-scoped directory the compiler writes into.
func (p *Plan) TargetDir(t domain.Target) string {
	return filepath.Join(p.OutputDir, "targets", t.ID(), "cargo")
}

// BindingsDir receives the generator output.
func (p *Plan) BindingsDir() string {
	return filepath.Join(p.OutputDir, "bindings")
}

// HeadersDir receives the relocated header and module map.
func (p *Plan) HeadersDir() string {
	return filepath.Join(p.OutputDir, "headers")
}

// MergedPath is where the fat archive of a platform is written.
func (p *Plan) MergedPath(platform domain.Platform) string {
	return filepath.Join(p.OutputDir, "merged", string(platform), p.Library.StaticFile())
}

// LogDir is where the structured log file lives.
func (p *Plan) LogDir() string {
	return filepath.Join(p.OutputDir, "logs")
}

// runDirs are recreated on every run so nothing from a previous run is reused.
func (p *Plan) runDirs() []string {
	return []string{p.BindingsDir(), p.HeadersDir(), filepath.Join(p.OutputDir, "merged")}
}
