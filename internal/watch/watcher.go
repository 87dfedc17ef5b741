// Package watch re-runs the pipeline when crate sources change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType represents the kind of file system change.
type EventType int

const (
	EventCreated EventType = iota + 1
	EventModified
	EventDeleted
	EventRenamed
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is one relevant file change.
type Event struct {
	Path string
	Type EventType
}

// Config contains configuration for the file watcher.
type Config struct {
	// Roots are the absolute directories watched recursively.
	Roots []string

	// Patterns match file base names (e.g. "*.rs", "Cargo.toml").
	Patterns []string

	// IgnoreNames are directory names never descended into.
	IgnoreNames []string

	// IgnoreDirs are absolute directories never descended into, typically
	// the output directory.
	IgnoreDirs []string

	// Debounce is the quiet period after the last change before a batch
	// is emitted.
	Debounce time.Duration
}

// DefaultIgnoreNames are skipped in every crate.
var DefaultIgnoreNames = []string{".git", "target", ".build", "node_modules", ".idea", ".vscode"}

// Watcher batches file changes under a set of roots.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	batches chan []Event
	errors  chan error

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer
}

// NewWatcher creates a watcher and registers every directory under the
// configured roots.
func NewWatcher(config Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		config:  config,
		watcher: fsWatcher,
		batches: make(chan []Event, 1),
		errors:  make(chan error, 10),
		pending: make(map[string]Event),
	}
	for _, root := range config.Roots {
		if err := w.addRecursive(root); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}
	return w, nil
}

// Batches returns debounced groups of changes.
func (w *Watcher) Batches() <-chan []Event { return w.batches }

// Errors returns watcher errors.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Run processes file system events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignoredDir(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.ignoredPath(ev.Name) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.ignoredDir(ev.Name) {
				// new directories may already contain files
				_ = w.addRecursive(ev.Name)
			}
			return
		}
	}
	if !w.matches(ev.Name) {
		return
	}

	var typ EventType
	switch {
	case ev.Has(fsnotify.Create):
		typ = EventCreated
	case ev.Has(fsnotify.Write):
		typ = EventModified
	case ev.Has(fsnotify.Remove):
		typ = EventDeleted
	case ev.Has(fsnotify.Rename):
		typ = EventRenamed
	default:
		return
	}
	w.enqueue(Event{Path: ev.Name, Type: typ})
}

func (w *Watcher) enqueue(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[ev.Path] = ev
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.Debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(w.pending))
	for _, ev := range w.pending {
		batch = append(batch, ev)
	}
	w.pending = make(map[string]Event)
	w.timer = nil
	w.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	select {
	case w.batches <- batch:
	default:
		// a batch is already queued; merge into it
		w.mu.Lock()
		for _, ev := range batch {
			w.pending[ev.Path] = ev
		}
		w.timer = time.AfterFunc(w.config.Debounce, w.flush)
		w.mu.Unlock()
	}
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) matches(path string) bool {
	if len(w.config.Patterns) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range w.config.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) ignoredDir(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range w.config.IgnoreNames {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	for _, dir := range w.config.IgnoreDirs {
		if path == dir {
			return true
		}
	}
	return false
}

func (w *Watcher) ignoredPath(path string) bool {
	for _, dir := range w.config.IgnoreDirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	for _, root := range w.config.Roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		for _, part := range strings.Split(filepath.Dir(rel), string(filepath.Separator)) {
			for _, pattern := range w.config.IgnoreNames {
				if matched, _ := filepath.Match(pattern, part); matched {
					return true
				}
			}
		}
	}
	return false
}
