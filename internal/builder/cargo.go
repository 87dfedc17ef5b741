package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/logger"
	"github.com/dosanma1/xcforge/internal/toolchain"
)

// CargoName is the registry name of the cargo backend.
const CargoName = "cargo"

// CargoBuilder compiles a Rust crate with cargo into a target-scoped directory.
type CargoBuilder struct {
	runner toolchain.Runner
}

// NewCargoBuilder creates a cargo backend.
func NewCargoBuilder(runner toolchain.Runner) *CargoBuilder {
	return &CargoBuilder{runner: runner}
}

func (b *CargoBuilder) Name() string { return CargoName }

// RequiredTools lists the binaries this backend shells out to.
func (b *CargoBuilder) RequiredTools() []toolchain.ToolRequirement {
	return []toolchain.ToolRequirement{{Name: "cargo", Purpose: "Rust compiler and package manager"}}
}

func (b *CargoBuilder) Validate(opts *BuildOptions) error {
	if opts == nil {
		return fmt.Errorf("build options are required")
	}
	if !filepath.IsAbs(opts.WorkspaceRoot) {
		return fmt.Errorf("workspace root must be absolute, got %q", opts.WorkspaceRoot)
	}
	if !filepath.IsAbs(opts.TargetDir) {
		return fmt.Errorf("target dir must be absolute, got %q", opts.TargetDir)
	}
	if opts.Library.Package == "" || opts.Library.Name == "" {
		return fmt.Errorf("library package and name are required")
	}
	if opts.Profile == "" {
		return fmt.Errorf("profile is required")
	}
	return opts.Target.Validate()
}

// Build runs cargo build for one target and locates the static archive (and
// the dynamic library for the reference target).
func (b *CargoBuilder) Build(ctx context.Context, opts *BuildOptions) (*domain.TargetBuild, error) {
	id := opts.Target.ID()
	if err := b.Validate(opts); err != nil {
		return nil, domain.NewStageError(domain.StageBuild, err).WithTarget(id)
	}

	outDir := b.OutputDir(opts)
	archive := filepath.Join(outDir, opts.Library.StaticFile())
	dylib := filepath.Join(outDir, opts.Library.DynamicFile())
	if err := removeStale(archive, dylib); err != nil {
		return nil, domain.NewStageError(domain.StageBuild, err).WithTarget(id)
	}

	log := logger.L().With("stage", domain.StageBuild, "target", id)
	log.Info("build.start", "triple", opts.Target.Triple, "profile", opts.Profile)

	res, err := b.runner.Run(ctx, toolchain.Command{
		Name: "cargo",
		Args: b.args(opts),
		Dir:  opts.WorkspaceRoot,
		Env:  opts.Env,
	})
	if err != nil {
		return nil, toolchain.StageFailure(domain.StageBuild, id, err)
	}

	result := &domain.TargetBuild{Target: opts.Target}
	result.Archive, err = artifactFile(archive, domain.ArtifactStaticArchive, opts)
	if err != nil {
		return nil, domain.NewStageError(domain.StageBuild, err).WithTarget(id)
	}
	if opts.Reference {
		dy, err := artifactFile(dylib, domain.ArtifactDynamicLibrary, opts)
		if err != nil {
			return nil, domain.NewStageError(domain.StageBuild, err).WithTarget(id)
		}
		result.Dylib = &dy
	}

	log.Info("build.done", "archive", archive, "duration", res.Duration)
	return result, nil
}

// OutputDir is where cargo leaves the target's artifacts:
// <target-dir>/<triple>/<profile-dir>.
func (b *CargoBuilder) OutputDir(opts *BuildOptions) string {
	return filepath.Join(opts.TargetDir, opts.Target.Triple, opts.Profile.Dir())
}

func (b *CargoBuilder) args(opts *BuildOptions) []string {
	var args []string
	if opts.Toolchain != "" {
		args = append(args, "+"+opts.Toolchain)
	}
	args = append(args,
		"build",
		"--package", opts.Library.Package,
		"--profile", string(opts.Profile),
		"--target", opts.Target.Triple,
		"--target-dir", opts.TargetDir,
	)
	if _, err := os.Stat(filepath.Join(opts.WorkspaceRoot, "Cargo.lock")); err == nil {
		args = append(args, "--locked")
	}
	return args
}
