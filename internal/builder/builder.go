// Package builder compiles the library for a single target.
package builder

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/toolchain"
)

// Builder is the interface every build system backend implements.
type Builder interface {
	// Name returns the build system name used in xcforge.yaml (e.g. "cargo").
	Name() string

	// Build compiles the library for opts.Target and returns its artifacts.
	Build(ctx context.Context, opts *BuildOptions) (*domain.TargetBuild, error)

	// Validate validates the build options
	Validate(opts *BuildOptions) error
}

// BuildOptions contains the options for one per-target build.
type BuildOptions struct {
	// WorkspaceRoot is the absolute path of the crate root.
	WorkspaceRoot string

	// TargetDir is the absolute, target-scoped directory the build writes into.
	TargetDir string

	Target  domain.Target
	Profile domain.Profile
	Library domain.Library

	// Toolchain is the rustup channel, empty for the default toolchain.
	Toolchain string

	// Reference builds must also produce the dynamic library.
	Reference bool

	// Env holds extra KEY=VALUE pairs for the compiler.
	Env []string
}

// Factory creates a builder bound to a command runner.
type Factory func(runner toolchain.Runner) Builder

// Registry holds all registered builders
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new builder registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register registers a builder factory under name.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("builder %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Get creates the builder registered under name.
func (r *Registry) Get(name string, runner toolchain.Runner) (Builder, error) {
	r.mu.RLock()
	f, exists := r.factories[name]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("builder %q not found (available: %v)", name, r.List())
	}
	return f(runner), nil
}

// List returns all registered builder names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global builder registry
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.Register(CargoName, func(runner toolchain.Runner) Builder { return NewCargoBuilder(runner) })
}

// Get creates a builder from the default registry
func Get(name string, runner toolchain.Runner) (Builder, error) {
	return DefaultRegistry.Get(name, runner)
}
