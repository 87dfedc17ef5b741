package config

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/matrix"
	"github.com/dosanma1/xcforge/internal/pipeline"
)

// Overrides are command line values. Zero values mean "not set".
type Overrides struct {
	Targets       []string
	Reference     string
	Profile       string
	OutputDir     string
	BundlePath    string
	SkipProvision *bool
	Jobs          int
}

// Resolver handles configuration precedence: CLI flags > xcforge.yaml > defaults.
type Resolver struct {
	config *Config
}

// NewResolver creates a new configuration resolver.
func NewResolver(config *Config) *Resolver {
	return &Resolver{config: config}
}

// Resolve turns the configuration and overrides into a run plan with
// absolute paths.
func (r *Resolver) Resolve(o Overrides) (*pipeline.Plan, error) {
	m, err := r.ResolveMatrix(o.Targets, o.Reference)
	if err != nil {
		return nil, err
	}

	outputDir := r.ResolveOutputDir(o.OutputDir)
	plan := &pipeline.Plan{
		Matrix:        m,
		Profile:       r.ResolveProfile(o.Profile),
		Library:       r.config.Library,
		WorkspaceRoot: r.abs(r.config.Workspace),
		OutputDir:     outputDir,
		BundlePath:    r.ResolveBundlePath(o.BundlePath, outputDir),
		ConfigDir:     r.config.dir,
		Toolchain:     r.config.Toolchain.Channel,
		Env:           r.ResolveEnv(),
		SkipProvision: r.ResolveSkipProvision(o.SkipProvision),
		Jobs:          r.ResolveJobs(o.Jobs),
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// ResolveMatrix builds the target matrix.
// Precedence: --targets/--reference > targets in config > default matrix.
func (r *Resolver) ResolveMatrix(triples []string, reference string) (*matrix.Matrix, error) {
	if len(triples) == 0 {
		for _, t := range r.config.Targets {
			triples = append(triples, t.Triple)
		}
	}
	if len(triples) == 0 {
		return matrix.Default(), nil
	}

	if reference == "" {
		ref, err := r.configReference(triples)
		if err != nil {
			return nil, err
		}
		reference = ref
	}
	return matrix.FromTriples(triples, reference)
}

// configReference picks the reference triple from the config file. When a
// single target is selected it is its own reference.
func (r *Resolver) configReference(triples []string) (string, error) {
	var refs []string
	for _, t := range r.config.Targets {
		if t.Reference {
			refs = append(refs, t.Triple)
		}
	}
	if len(refs) > 1 {
		return "", &domain.ConfigError{Err: fmt.Errorf("only one target may be marked as reference, found %v", refs)}
	}
	if len(refs) == 1 {
		for _, t := range triples {
			if t == refs[0] {
				return refs[0], nil
			}
		}
	}
	if len(triples) == 1 {
		return triples[0], nil
	}
	// matrix validation reports the missing reference
	if len(refs) == 1 {
		return refs[0], nil
	}
	return "", nil
}

// ResolveProfile resolves the compiler profile.
func (r *Resolver) ResolveProfile(flag string) domain.Profile {
	if flag != "" {
		return domain.Profile(flag)
	}
	return domain.Profile(r.config.Profile)
}

// ResolveOutputDir resolves the output directory. Flag values are relative
// to the working directory, config values to the config file.
func (r *Resolver) ResolveOutputDir(flag string) string {
	if flag != "" {
		abs, err := filepath.Abs(flag)
		if err == nil {
			return abs
		}
		return flag
	}
	return r.abs(r.config.OutputDir)
}

// ResolveBundlePath resolves the .xcframework path.
// Precedence: --bundle > bundle.path > <output_dir>/<bundle.name>.xcframework.
func (r *Resolver) ResolveBundlePath(flag, outputDir string) string {
	if flag != "" {
		abs, err := filepath.Abs(flag)
		if err == nil {
			return abs
		}
		return flag
	}
	if r.config.Bundle.Path != "" {
		return r.abs(r.config.Bundle.Path)
	}
	return filepath.Join(outputDir, r.config.Bundle.Name+".xcframework")
}

// ResolveSkipProvision resolves whether toolchain provisioning is skipped.
func (r *Resolver) ResolveSkipProvision(flag *bool) bool {
	if flag != nil {
		return *flag
	}
	return r.config.Toolchain.SkipProvision
}

// ResolveJobs resolves the build concurrency.
func (r *Resolver) ResolveJobs(flag int) int {
	if flag > 0 {
		return flag
	}
	return r.config.Jobs
}

// ResolveEnv returns the configured environment as sorted KEY=VALUE pairs.
func (r *Resolver) ResolveEnv() []string {
	if len(r.config.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(r.config.Env))
	for k, v := range r.config.Env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// ResolveSourcesDir returns where generated sources are moved, or "".
func (r *Resolver) ResolveSourcesDir() string {
	if r.config.Bindings.SourcesDir == "" {
		return ""
	}
	return r.abs(r.config.Bindings.SourcesDir)
}

// ResolveModule returns the FFI module name the generator emits.
func (r *Resolver) ResolveModule() string {
	if r.config.Bindings.Module != "" {
		return r.config.Bindings.Module
	}
	return r.config.Library.Name + "FFI"
}

func (r *Resolver) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	base := r.config.dir
	if base == "" {
		if wd, err := filepath.Abs("."); err == nil {
			base = wd
		}
	}
	return filepath.Join(base, p)
}
