package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dosanma1/xcforge/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "library:\n  name: bdkffi\n")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Library.Package != "bdkffi" {
		t.Errorf("Package = %q, want bdkffi", c.Library.Package)
	}
	if c.Profile != "release-smaller" {
		t.Errorf("Profile = %q", c.Profile)
	}
	if c.Bundle.Name != "bdkffiFFI" {
		t.Errorf("Bundle.Name = %q", c.Bundle.Name)
	}
	if c.Builder != "cargo" || c.Toolchain.Channel != "stable" || c.Bindings.Language != "swift" {
		t.Errorf("defaults = %q %q %q", c.Builder, c.Toolchain.Channel, c.Bindings.Language)
	}
	if diff := cmp.Diff(DefaultTargets(), c.Targets); diff != "" {
		t.Errorf("Targets mismatch (-want +got):\n%s", diff)
	}
	if c.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v", c.Watch.Debounce)
	}
	if c.Dir() != filepath.Dir(path) {
		t.Errorf("Dir() = %q, want %q", c.Dir(), filepath.Dir(path))
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `version: 1
workspace: rust
library:
  package: bdk-ffi
  name: bdkffi
profile: release
output_dir: out
jobs: 3
env:
  IPHONEOS_DEPLOYMENT_TARGET: "15.0"
targets:
  - triple: aarch64-apple-ios
    reference: true
  - triple: aarch64-apple-ios-sim
bindings:
  module: BitcoinDevKitFFI
  sources_dir: Sources/BitcoinDevKit
bundle:
  name: bdkFFI
  path: ../bdkFFI.xcframework
watch:
  debounce: 2s
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Library != (domain.Library{Package: "bdk-ffi", Name: "bdkffi"}) {
		t.Errorf("Library = %+v", c.Library)
	}
	if c.Jobs != 3 || c.Profile != "release" {
		t.Errorf("Jobs/Profile = %d %q", c.Jobs, c.Profile)
	}
	if len(c.Targets) != 2 || !c.Targets[0].Reference {
		t.Errorf("Targets = %+v", c.Targets)
	}
	if c.Watch.Debounce != 2*time.Second {
		t.Errorf("Debounce = %v", c.Watch.Debounce)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing library", body: "profile: release\n", want: "library"},
		{name: "unknown field", body: "library:\n  name: x\nbogus: 1\n", want: "bogus"},
		{name: "bad bundle path", body: "library:\n  name: x\nbundle:\n  path: out/x.framework\n", want: "bundle.path"},
		{name: "negative jobs", body: "library:\n  name: x\njobs: -1\n", want: "jobs"},
		{
			name: "two references",
			body: "library:\n  name: x\ntargets:\n  - triple: aarch64-apple-ios\n    reference: true\n  - triple: aarch64-apple-darwin\n    reference: true\n",
			want: "only one target",
		},
		{
			name: "duplicate target",
			body: "library:\n  name: x\ntargets:\n  - triple: aarch64-apple-ios\n  - triple: aarch64-apple-ios\n",
			want: "duplicate target",
		},
		{name: "invalid yaml", body: "library: [\n", want: "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not a ConfigError", err)
			}
			if got := domain.ExitCode(err); got != domain.ExitConfig {
				t.Errorf("ExitCode = %d, want %d", got, domain.ExitConfig)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want not exist", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	want := NewDefaultConfig("bdk-ffi", "bdkffi")
	if err := want.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateSchemaReportsEveryProblem(t *testing.T) {
	problems, err := ValidateSchema([]byte("library:\n  name: \"1bad\"\njobs: x\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) < 2 {
		t.Fatalf("problems = %v, want at least 2", problems)
	}
}
