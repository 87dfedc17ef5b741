// Package lipo merges per-architecture static archives of one platform into a
// single fat archive.
package lipo

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

// Lipo merges archives with `lipo -create`.
type Lipo struct {
	runner toolchain.Runner
	// Tool is the binary to run, "lipo" unless toolchain.FindTool picked an
	// alternative.
	Tool string
	// Verify re-reads the merged archive with `lipo -archs`.
	Verify bool
}

// New creates a merger.
func New(runner toolchain.Runner) *Lipo {
	return &Lipo{runner: runner, Tool: toolchain.LipoTool.Name, Verify: true}
}

// NewFromPath creates a merger that runs whichever of lipo or llvm-lipo is
// found on PATH.
func NewFromPath(runner toolchain.Runner) *Lipo {
	l := New(runner)
	if path, ok := toolchain.FindTool(toolchain.LipoTool); ok {
		l.Tool = path
	}
	return l
}

// Merge combines two or more static archives of the same platform, library
// and profile into dest. The result does not depend on the input order.
func (l *Lipo) Merge(ctx context.Context, artifacts []domain.BuildArtifact, dest string) (*domain.MergedArtifact, error) {
	sorted, err := checkInputs(artifacts)
	if err != nil {
		return nil, domain.NewStageError(domain.StageMerge, err)
	}
	platform := sorted[0].Target.Platform()
	if !filepath.IsAbs(dest) {
		return nil, domain.NewStageError(domain.StageMerge, fmt.Errorf("destination must be absolute, got %q", dest))
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, domain.NewStageError(domain.StageMerge, err)
	}

	log := logger.L().With("stage", domain.StageMerge, "platform", platform)

	// Write next to dest and rename so a failed merge never leaves a
	// partial archive at the final path.
	tmp := dest + ".partial"
	_ = os.Remove(tmp)

	args := []string{"-create"}
	for _, a := range sorted {
		args = append(args, a.Path)
	}
	args = append(args, "-output", tmp)

	if _, err := l.runner.Run(ctx, toolchain.Command{Name: l.Tool, Args: args, Dir: filepath.Dir(dest)}); err != nil {
		_ = os.Remove(tmp)
		return nil, toolchain.StageFailure(domain.StageMerge, string(platform), err)
	}

	merged := &domain.MergedArtifact{Platform: platform, Path: dest}
	for _, a := range sorted {
		merged.Targets = append(merged.Targets, a.Target)
		merged.Archs = append(merged.Archs, a.Target.Arch)
	}

	if l.Verify {
		got, err := l.Archs(ctx, tmp)
		if err != nil {
			_ = os.Remove(tmp)
			return nil, toolchain.StageFailure(domain.StageMerge, string(platform), err)
		}
		if !sameArchs(got, merged.Archs) {
			_ = os.Remove(tmp)
			return nil, domain.NewStageError(domain.StageMerge,
				fmt.Errorf("merged archive has architectures %v, want %v", got, merged.Archs))
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		return nil, domain.NewStageError(domain.StageMerge, err)
	}
	log.Info("merge.done", "archs", merged.Archs, "path", dest)
	return merged, nil
}

// Archs returns the architectures contained in an archive, sorted.
func (l *Lipo) Archs(ctx context.Context, path string) ([]domain.Arch, error) {
	res, err := l.runner.Run(ctx, toolchain.Command{Name: l.Tool, Args: []string{"-archs", path}, Dir: filepath.Dir(path)})
	if err != nil {
		return nil, err
	}
	var out []domain.Arch
	for _, f := range strings.Fields(string(res.Output)) {
		out = append(out, domain.Arch(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// checkInputs validates merge preconditions and returns the inputs sorted
// by architecture.
func checkInputs(artifacts []domain.BuildArtifact) ([]domain.BuildArtifact, error) {
	if len(artifacts) < 2 {
		return nil, fmt.Errorf("merge needs at least two archives, got %d", len(artifacts))
	}

	first := artifacts[0]
	archs := map[domain.Arch]bool{}
	for _, a := range artifacts {
		if a.Kind != domain.ArtifactStaticArchive {
			return nil, fmt.Errorf("%s: only static archives can be merged, got %s", a.Target.ID(), a.Kind)
		}
		if a.Target.Platform() != first.Target.Platform() {
			return nil, fmt.Errorf("cannot merge %s with %s: different platforms", a.Target.ID(), first.Target.ID())
		}
		if a.Profile != first.Profile {
			return nil, fmt.Errorf("cannot merge profile %s with %s", a.Profile, first.Profile)
		}
		if a.FileName() != first.FileName() {
			return nil, fmt.Errorf("cannot merge %s with %s: different libraries", a.FileName(), first.FileName())
		}
		if archs[a.Target.Arch] {
			return nil, fmt.Errorf("architecture %s appears twice for %s", a.Target.Arch, a.Target.Platform())
		}
		archs[a.Target.Arch] = true

		info, err := os.Stat(a.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Target.ID(), err)
		}
		if info.Size() == 0 {
			return nil, fmt.Errorf("%s: archive %s is empty", a.Target.ID(), a.Path)
		}
	}

	sorted := make([]domain.BuildArtifact, len(artifacts))
	copy(sorted, artifacts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Target.Arch < sorted[j].Target.Arch })
	return sorted, nil
}

func sameArchs(a, b []domain.Arch) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
