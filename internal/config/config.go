// Package config loads xcforge.yaml and resolves it, together with command
// line overrides, into a pipeline plan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/pkg/xos"
)

// DefaultFileName is the configuration file looked up by default.
const DefaultFileName = "xcforge.yaml"

// Config represents the xcforge.yaml configuration file.
type Config struct {
	Version int `yaml:"version"`

	// Workspace is the crate root, relative to the config file.
	Workspace string `yaml:"workspace"`

	Library domain.Library `yaml:"library"`

	// Builder selects the build system backend.
	Builder string `yaml:"builder,omitempty"`

	Toolchain ToolchainConfig `yaml:"toolchain"`

	Profile   string `yaml:"profile"`
	OutputDir string `yaml:"output_dir"`
	Jobs      int    `yaml:"jobs,omitempty"`

	// Env is passed to every compiler invocation.
	Env map[string]string `yaml:"env,omitempty"`

	Targets  []TargetConfig `yaml:"targets"`
	Bindings BindingsConfig `yaml:"bindings"`
	Bundle   BundleConfig   `yaml:"bundle"`
	Watch    WatchConfig    `yaml:"watch,omitempty"`

	// dir is the absolute directory relative paths resolve against.
	dir string
}

// ToolchainConfig holds compiler toolchain settings.
type ToolchainConfig struct {
	Channel       string   `yaml:"channel"`
	Components    []string `yaml:"components,omitempty"`
	SkipProvision bool     `yaml:"skip_provision,omitempty"`
}

// TargetConfig is one entry of the target matrix.
type TargetConfig struct {
	Triple    string `yaml:"triple"`
	Reference bool   `yaml:"reference,omitempty"`
}

// BindingsConfig configures the binding generator.
type BindingsConfig struct {
	Language string `yaml:"language"`
	// Module is the FFI module name (<Module>.h, <Module>.modulemap).
	Module string `yaml:"module"`
	// Command overrides the generator command line.
	Command []string `yaml:"command,omitempty"`
	// SourcesDir receives the generated sources.
	SourcesDir string `yaml:"sources_dir,omitempty"`
}

// BundleConfig configures the final bundle.
type BundleConfig struct {
	Name string `yaml:"name"`
	// Path defaults to <output_dir>/<name>.xcframework.
	Path string `yaml:"path,omitempty"`
}

// WatchConfig configures `xcforge watch`.
type WatchConfig struct {
	Paths    []string      `yaml:"paths,omitempty"`
	Patterns []string      `yaml:"patterns,omitempty"`
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// Load reads, schema-checks and parses the configuration file.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &domain.ConfigError{Path: path, Err: err}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &domain.ConfigError{Path: abs, Err: fmt.Errorf("failed to read config: %w", err)}
	}

	if problems, err := ValidateSchema(data); err != nil {
		return nil, &domain.ConfigError{Path: abs, Err: err}
	} else if len(problems) > 0 {
		return nil, &domain.ConfigError{Path: abs, Err: &SchemaError{Problems: problems}}
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, &domain.ConfigError{Path: abs, Err: fmt.Errorf("failed to parse config: %w", err)}
	}
	config.dir = filepath.Dir(abs)

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, &domain.ConfigError{Path: abs, Err: err}
	}
	return &config, nil
}

// Save writes the config to a file atomically.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := xos.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Dir returns the directory relative paths resolve against.
func (c *Config) Dir() string { return c.dir }

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Library.Package == "" {
		return fmt.Errorf("library.package is required")
	}
	if c.Library.Name == "" {
		return fmt.Errorf("library.name is required")
	}
	if c.Bundle.Name == "" {
		return fmt.Errorf("bundle.name is required")
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative")
	}

	seen := make(map[string]bool)
	refs := 0
	for _, t := range c.Targets {
		if t.Triple == "" {
			return fmt.Errorf("target triple is required")
		}
		if seen[t.Triple] {
			return fmt.Errorf("duplicate target: %s", t.Triple)
		}
		seen[t.Triple] = true
		if t.Reference {
			refs++
		}
	}
	if refs > 1 {
		return fmt.Errorf("only one target may be marked as reference, found %d", refs)
	}
	return nil
}

// applyDefaults sets default values for missing fields.
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.Library.Package == "" && c.Library.Name != "" {
		c.Library.Package = c.Library.Name
	}
	if c.Builder == "" {
		c.Builder = "cargo"
	}
	if c.Toolchain.Channel == "" {
		c.Toolchain.Channel = "stable"
	}
	if c.Profile == "" {
		c.Profile = "release-smaller"
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join("target", "xcforge")
	}
	if c.Bindings.Language == "" {
		c.Bindings.Language = "swift"
	}
	if c.Bundle.Name == "" && c.Library.Name != "" {
		c.Bundle.Name = c.Library.Name + "FFI"
	}
	if len(c.Targets) == 0 {
		c.Targets = DefaultTargets()
	}
	if len(c.Watch.Patterns) == 0 {
		c.Watch.Patterns = []string{"*.rs", "*.udl", "Cargo.toml", "uniffi.toml", DefaultFileName}
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 500 * time.Millisecond
	}
}

// DefaultTargets is the five-target Apple matrix with the iOS device target
// as reference.
func DefaultTargets() []TargetConfig {
	return []TargetConfig{
		{Triple: "x86_64-apple-darwin"},
		{Triple: "aarch64-apple-darwin"},
		{Triple: "aarch64-apple-ios", Reference: true},
		{Triple: "x86_64-apple-ios"},
		{Triple: "aarch64-apple-ios-sim"},
	}
}

// NewDefaultConfig creates a config for a crate with sensible defaults.
func NewDefaultConfig(pkg, name string) *Config {
	c := &Config{
		Library: domain.Library{Package: pkg, Name: name},
		Toolchain: ToolchainConfig{
			Channel: "stable",
		},
	}
	c.applyDefaults()
	return c
}
