package watch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dosanma1/xcforge/internal/logger"
)

// RebuildFunc runs one pipeline pass. changes is nil for the initial pass.
type RebuildFunc func(ctx context.Context, changes []Event) error

// Source delivers batches of changes.
type Source interface {
	Batches() <-chan []Event
	Errors() <-chan error
}

var _ Source = (*Watcher)(nil)

// Loop runs an initial build and then rebuilds after every batch of
// changes. Rebuilds never overlap; changes arriving during a rebuild are
// picked up by the next one. A failed rebuild is reported and the loop
// keeps watching.
type Loop struct {
	Source  Source
	Rebuild RebuildFunc
	// OnResult is called after every pass.
	OnResult func(err error)
	Logger   *slog.Logger
}

// Run blocks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	log := l.Logger
	if log == nil {
		log = logger.L()
	}

	l.pass(ctx, log, nil)
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-l.Source.Batches():
			log.Info("watch.changed", "files", len(batch))
			l.pass(ctx, log, batch)
		case err := <-l.Source.Errors():
			log.Warn("watch.error", "error", err)
		}
	}
}

func (l *Loop) pass(ctx context.Context, log *slog.Logger, changes []Event) {
	err := l.Rebuild(ctx, changes)
	switch {
	case err == nil:
		log.Info("watch.rebuilt")
	case errors.Is(err, context.Canceled):
		return
	default:
		log.Error("watch.rebuild_failed", "error", err)
	}
	if l.OnResult != nil {
		l.OnResult(err)
	}
}
