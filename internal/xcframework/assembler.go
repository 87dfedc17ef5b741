// Package xcframework assembles the per-platform libraries and their headers
// into the final XCFramework bundle.
package xcframework

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
	"github.com/dosanma1/xcforge/pkg/xos"
)

// Extension is the required suffix of the bundle path.
const Extension = ".xcframework"

// Assembler runs `xcodebuild -create-xcframework`.
type Assembler struct {
	runner toolchain.Runner
	// Expected, when set, is the exact platform set the entries must cover.
	Expected []domain.Platform
}

// NewAssembler creates an assembler.
func NewAssembler(runner toolchain.Runner, expected []domain.Platform) *Assembler {
	return &Assembler{runner: runner, Expected: expected}
}

// Assemble writes a new bundle at bundlePath. Inputs are validated before
// anything on disk is touched; the bundle is built in a staging directory
// and only swapped into place once the tool succeeded, so a failed run
// leaves the previous bundle intact.
func (a *Assembler) Assemble(ctx context.Context, bundlePath string, entries []domain.PlatformLibrary) (*domain.Bundle, error) {
	if err := a.Validate(bundlePath, entries); err != nil {
		return nil, domain.NewStageError(domain.StageAssemble, err)
	}

	log := logger.L().With("stage", domain.StageAssemble, "bundle", bundlePath)

	parent := filepath.Dir(bundlePath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, domain.NewStageError(domain.StageAssemble, err)
	}
	lock, err := acquireLock(ctx, bundlePath+".lock")
	if err != nil {
		return nil, domain.NewStageError(domain.StageAssemble, fmt.Errorf("lock bundle path: %w", err))
	}
	defer lock.release()

	base := filepath.Base(bundlePath)
	staging := filepath.Join(parent, fmt.Sprintf(".%s.staging-%d", strings.TrimSuffix(base, Extension), os.Getpid()))
	if err := os.RemoveAll(staging); err != nil {
		return nil, domain.NewStageError(domain.StageAssemble, err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, domain.NewStageError(domain.StageAssemble, err)
	}
	defer os.RemoveAll(staging)

	staged := filepath.Join(staging, base)
	args := []string{"-create-xcframework"}
	for _, e := range entries {
		args = append(args, "-library", e.LibraryPath, "-headers", e.HeaderDir)
	}
	args = append(args, "-output", staged)

	log.Info("assemble.start", "platforms", len(entries))
	if _, err := a.runner.Run(ctx, toolchain.Command{Name: "xcodebuild", Args: args, Dir: parent}); err != nil {
		return nil, toolchain.StageFailure(domain.StageAssemble, "", err)
	}
	if info, err := os.Stat(staged); err != nil || !info.IsDir() {
		return nil, domain.NewStageError(domain.StageAssemble, fmt.Errorf("xcodebuild did not produce %s", staged))
	}

	if err := xos.ReplaceDir(staged, bundlePath); err != nil {
		return nil, domain.NewStageError(domain.StageAssemble, fmt.Errorf("install bundle: %w", err))
	}

	log.Info("assemble.done")
	out := make([]domain.PlatformLibrary, len(entries))
	copy(out, entries)
	return &domain.Bundle{Path: bundlePath, Entries: out}, nil
}

// Validate checks the bundle path and entries without touching the disk
// beyond stat calls.
func (a *Assembler) Validate(bundlePath string, entries []domain.PlatformLibrary) error {
	if !filepath.IsAbs(bundlePath) || !strings.HasSuffix(bundlePath, Extension) {
		return fmt.Errorf("bundle path must be absolute and end in %s, got %q", Extension, bundlePath)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no platform libraries to assemble")
	}

	seen := map[domain.Platform]bool{}
	for _, e := range entries {
		if e.Platform == "" {
			return fmt.Errorf("entry for %s has no platform", e.LibraryPath)
		}
		if seen[e.Platform] {
			return fmt.Errorf("platform %s appears more than once", e.Platform)
		}
		seen[e.Platform] = true

		if e.LibraryPath == "" || e.HeaderDir == "" {
			return fmt.Errorf("platform %s: library and header directory are both required", e.Platform)
		}
		info, err := os.Stat(e.LibraryPath)
		if err != nil {
			return fmt.Errorf("platform %s: %w", e.Platform, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("platform %s: library %s is empty", e.Platform, e.LibraryPath)
		}
		if info, err := os.Stat(e.HeaderDir); err != nil || !info.IsDir() {
			return fmt.Errorf("platform %s: header directory %s missing", e.Platform, e.HeaderDir)
		}
	}

	if a.Expected != nil {
		var missing, extra []string
		want := map[domain.Platform]bool{}
		for _, p := range a.Expected {
			want[p] = true
			if !seen[p] {
				missing = append(missing, string(p))
			}
		}
		for p := range seen {
			if !want[p] {
				extra = append(extra, string(p))
			}
		}
		if len(missing) > 0 || len(extra) > 0 {
			sort.Strings(extra)
			return fmt.Errorf("platform pairing mismatch: missing %v, unexpected %v", missing, extra)
		}
	}
	return nil
}
