// Package pipeline runs the bundle stages in order: provision, build every
// target, generate bindings once, merge per platform, relocate headers and
// assemble the bundle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dosanma1/xcforge/internal/builder"
	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/logger"
	"github.com/dosanma1/xcforge/internal/ports"
)

// Pipeline wires the stage implementations together.
type Pipeline struct {
	Provisioner ports.Provisioner
	Builder     ports.TargetBuilder
	Generator   ports.BindingGenerator
	Merger      ports.ArchiveMerger
	Relocator   ports.HeaderRelocator
	Assembler   ports.BundleAssembler
	Observer    ports.Observer
	Logger      *slog.Logger
}

// Result is everything a successful run produced.
type Result struct {
	Builds   []*domain.TargetBuild
	Bindings *domain.BindingOutput
	Headers  *domain.HeaderSet
	Merged   []*domain.MergedArtifact
	Bundle   *domain.Bundle
	Duration time.Duration
}

// run holds the per-run state.
type run struct {
	*Pipeline
	plan      *Plan
	log       *slog.Logger
	generated atomic.Bool
}

// Run executes the pipeline. The first failing stage aborts the run and its
// error is returned; nothing is retried and the bundle is untouched unless
// every earlier stage succeeded.
func (p *Pipeline) Run(ctx context.Context, plan *Plan) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := p.check(plan); err != nil {
		return nil, err
	}

	r := &run{Pipeline: p, plan: plan, log: p.logger()}
	start := time.Now()
	r.log.Info("pipeline.start",
		"targets", plan.Matrix.Len(),
		"profile", plan.Profile,
		"bundle", plan.BundlePath,
		"jobs", plan.Parallelism())

	res, err := r.execute(ctx)
	if err != nil {
		r.log.Error("pipeline.failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	res.Duration = time.Since(start)
	r.log.Info("pipeline.done", "duration", res.Duration)
	return res, nil
}

func (r *run) execute(ctx context.Context) (*Result, error) {
	plan := r.plan
	res := &Result{}

	for _, d := range plan.runDirs() {
		if err := os.RemoveAll(d); err != nil {
			return nil, fmt.Errorf("reset %s: %w", d, err)
		}
	}

	if !plan.SkipProvision {
		err := r.stage(domain.StageProvision, 1, func() error {
			return asStage(domain.StageProvision, r.Provisioner.Ensure(ctx, plan.Matrix.Targets()))
		})
		if err != nil {
			return nil, err
		}
	}

	var err error
	if res.Builds, err = r.buildAll(ctx); err != nil {
		return nil, err
	}

	ref, err := r.reference(res.Builds)
	if err != nil {
		return nil, err
	}
	err = r.stage(domain.StageGenerate, 1, func() error {
		res.Bindings, err = r.generate(ctx, *ref.Dylib)
		return err
	})
	if err != nil {
		return nil, err
	}

	var entries []domain.PlatformLibrary
	err = r.stage(domain.StageMerge, len(plan.Matrix.Families()), func() error {
		res.Merged, entries, err = r.mergeAll(ctx, res.Builds)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(domain.StageRelocate, 1, func() error {
		res.Headers, err = r.Relocator.Relocate(ctx, res.Bindings)
		return asStage(domain.StageRelocate, err)
	})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].HeaderDir = res.Headers.Dir
	}

	err = r.stage(domain.StageAssemble, len(entries), func() error {
		res.Bundle, err = r.Assembler.Assemble(ctx, plan.BundlePath, entries)
		return asStage(domain.StageAssemble, err)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// buildAll compiles every target concurrently. The first failure cancels
// the remaining builds.
func (r *run) buildAll(ctx context.Context) ([]*domain.TargetBuild, error) {
	targets := r.plan.Matrix.Targets()
	out := make([]*domain.TargetBuild, len(targets))

	err := r.stage(domain.StageBuild, len(targets), func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.plan.Parallelism())

		for i, t := range targets {
			opts := &builder.BuildOptions{
				WorkspaceRoot: r.plan.WorkspaceRoot,
				TargetDir:     r.plan.TargetDir(t),
				Target:        t,
				Profile:       r.plan.Profile,
				Library:       r.plan.Library,
				Toolchain:     r.plan.Toolchain,
				Reference:     r.plan.Matrix.IsReference(t),
				Env:           r.plan.Env,
			}
			g.Go(func() error {
				started := time.Now()
				b, err := r.Builder.Build(gctx, opts)
				if err != nil {
					var se *domain.StageError
					if !errors.As(err, &se) {
						se = domain.NewStageError(domain.StageBuild, err).WithTarget(t.ID())
					}
					return se
				}
				out[i] = b
				r.observer().TargetBuilt(t, time.Since(started))
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *run) reference(builds []*domain.TargetBuild) (*domain.TargetBuild, error) {
	ref, err := r.plan.Matrix.Reference()
	if err != nil {
		return nil, err
	}
	for _, b := range builds {
		if b.Target.Triple == ref.Triple {
			if b.Dylib == nil {
				return nil, domain.NewStageError(domain.StageBuild,
					fmt.Errorf("reference target produced no dynamic library")).WithTarget(ref.ID())
			}
			return b, nil
		}
	}
	return nil, domain.NewStageError(domain.StageBuild, fmt.Errorf("reference target was not built")).WithTarget(ref.ID())
}

// generate invokes the binding generator. It may run once per run.
func (r *run) generate(ctx context.Context, lib domain.BuildArtifact) (*domain.BindingOutput, error) {
	if !r.generated.CompareAndSwap(false, true) {
		return nil, domain.NewStageError(domain.StageGenerate, fmt.Errorf("binding generator already ran in this run"))
	}
	out, err := r.Generator.Generate(ctx, lib, r.plan.BindingsDir())
	return out, asStage(domain.StageGenerate, err)
}

// mergeAll merges every multi-architecture family concurrently and returns
// one library entry per platform in matrix order.
func (r *run) mergeAll(ctx context.Context, builds []*domain.TargetBuild) ([]*domain.MergedArtifact, []domain.PlatformLibrary, error) {
	byTriple := make(map[string]*domain.TargetBuild, len(builds))
	for _, b := range builds {
		byTriple[b.Target.Triple] = b
	}

	families := r.plan.Matrix.Families()
	entries := make([]domain.PlatformLibrary, len(families))
	merged := make([]*domain.MergedArtifact, len(families))

	g, gctx := errgroup.WithContext(ctx)
	for i, fam := range families {
		archives := make([]domain.BuildArtifact, 0, len(fam.Targets))
		for _, t := range fam.Targets {
			archives = append(archives, byTriple[t.Triple].Archive)
		}

		if !fam.NeedsMerge() {
			entries[i] = domain.PlatformLibrary{Platform: fam.Platform, LibraryPath: archives[0].Path}
			continue
		}

		dest := r.plan.MergedPath(fam.Platform)
		g.Go(func() error {
			m, err := r.Merger.Merge(gctx, archives, dest)
			if err != nil {
				return asStage(domain.StageMerge, err)
			}
			merged[i] = m
			entries[i] = domain.PlatformLibrary{Platform: fam.Platform, LibraryPath: m.Path, Merged: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var compact []*domain.MergedArtifact
	for _, m := range merged {
		if m != nil {
			compact = append(compact, m)
		}
	}
	return compact, entries, nil
}

func (r *run) stage(s domain.Stage, total int, fn func() error) error {
	r.observer().StageStarted(s, total)
	r.log.Info("stage.start", "stage", s)
	start := time.Now()
	err := fn()
	r.observer().StageFinished(s, err)
	if err != nil {
		r.log.Error("stage.failed", "stage", s, "error", err, "duration", time.Since(start))
		return err
	}
	r.log.Info("stage.done", "stage", s, "duration", time.Since(start))
	return nil
}

func (r *run) observer() ports.Observer {
	if r.Observer == nil {
		return ports.NopObserver{}
	}
	return r.Observer
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return logger.L()
}

func (p *Pipeline) check(plan *Plan) error {
	var missing []string
	if p.Provisioner == nil && !plan.SkipProvision {
		missing = append(missing, "provisioner")
	}
	if p.Builder == nil {
		missing = append(missing, "builder")
	}
	if p.Generator == nil {
		missing = append(missing, "generator")
	}
	if p.Merger == nil {
		missing = append(missing, "merger")
	}
	if p.Relocator == nil {
		missing = append(missing, "relocator")
	}
	if p.Assembler == nil {
		missing = append(missing, "assembler")
	}
	if len(missing) > 0 {
		return fmt.Errorf("pipeline is missing: %v", missing)
	}
	return nil
}

// asStage makes sure err carries a stage; adapters normally return a
// StageError already.
func asStage(stage domain.Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StageError
	if errors.As(err, &se) {
		return err
	}
	return domain.NewStageError(stage, err)
}
