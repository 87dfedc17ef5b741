// Package ports declares the capabilities the pipeline needs from the outside
// world. Each external tool sits behind one of these so the orchestration can
// be exercised with fakes.
package ports

import (
	"context"
	"time"

	"github.com/dosanma1/xcforge/internal/builder"
	"github.com/dosanma1/xcforge/internal/domain"
)

// Provisioner installs the toolchain and per-target standard libraries.
type Provisioner interface {
	Ensure(ctx context.Context, targets []domain.Target) error
}

// TargetBuilder compiles the library for one target.
type TargetBuilder interface {
	Build(ctx context.Context, opts *builder.BuildOptions) (*domain.TargetBuild, error)
}

// BindingGenerator produces foreign-language bindings from a dynamic library.
type BindingGenerator interface {
	Generate(ctx context.Context, lib domain.BuildArtifact, outDir string) (*domain.BindingOutput, error)
}

// ArchiveMerger combines per-architecture archives of one platform.
type ArchiveMerger interface {
	Merge(ctx context.Context, artifacts []domain.BuildArtifact, dest string) (*domain.MergedArtifact, error)
}

// HeaderRelocator moves generated headers into the bundle layout.
type HeaderRelocator interface {
	Relocate(ctx context.Context, out *domain.BindingOutput) (*domain.HeaderSet, error)
}

// BundleAssembler writes the final bundle.
type BundleAssembler interface {
	Assemble(ctx context.Context, bundlePath string, entries []domain.PlatformLibrary) (*domain.Bundle, error)
}

// Observer receives progress events. Implementations must be safe for
// concurrent use: TargetBuilt is called from build workers.
type Observer interface {
	StageStarted(stage domain.Stage, total int)
	TargetBuilt(target domain.Target, elapsed time.Duration)
	StageFinished(stage domain.Stage, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StageStarted(domain.Stage, int)           {}
func (NopObserver) TargetBuilt(domain.Target, time.Duration) {}
func (NopObserver) StageFinished(domain.Stage, error)        {}
