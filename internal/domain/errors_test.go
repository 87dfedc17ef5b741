package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStageErrorWrapUnwrap(t *testing.T) {
	root := errors.New("linker failed")
	err := &StageError{Stage: StageBuild, Target: "ios-arm64", Status: 101, Err: root}

	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is to match cause")
	}
	if !errors.Is(err, ErrBuild) {
		t.Fatalf("expected errors.Is to match ErrBuild")
	}
	if errors.Is(err, ErrMerge) {
		t.Fatalf("build error must not match ErrMerge")
	}

	wrapped := fmt.Errorf("pipeline: %w", err)
	if !IsStage(wrapped, StageBuild) {
		t.Fatalf("expected IsStage to see through wrapping")
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{
		Stage:       StageBuild,
		Target:      "macos-x86_64",
		Status:      101,
		Diagnostics: "error[E0432]: unresolved import",
		Err:         errors.New("cargo build failed"),
	}

	msg := err.Error()
	for _, want := range []string{"build error", "target=macos-x86_64", "exit status 101", "cargo build failed", "E0432"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitGeneric},
		{"config", &ConfigError{Err: errors.New("bad")}, ExitConfig},
		{"matrix", NewStageError(StageMatrix, ErrInvalidMatrix), ExitConfig},
		{"provision", NewStageError(StageProvision, errors.New("x")), ExitProvision},
		{"build", NewStageError(StageBuild, errors.New("x")), ExitBuild},
		{"generate", NewStageError(StageGenerate, errors.New("x")), ExitGeneration},
		{"merge", NewStageError(StageMerge, errors.New("x")), ExitMerge},
		{"relocate", NewStageError(StageRelocate, errors.New("x")), ExitRelocation},
		{"assemble", fmt.Errorf("wrapped: %w", NewStageError(StageAssemble, errors.New("x"))), ExitAssembly},
	}

	seen := map[int]string{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Fatalf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
		if prev, ok := seen[tt.want]; ok && tt.want >= ExitProvision && prev != tt.name {
			t.Errorf("stages %s and %s share exit code %d", prev, tt.name, tt.want)
		}
		seen[tt.want] = tt.name
	}
}

func TestTargetHelpers(t *testing.T) {
	tgt := Target{OS: OSIOSSimulator, Arch: ArchARM64, Triple: "aarch64-apple-ios-sim"}
	if tgt.ID() != "ios-simulator-arm64" {
		t.Fatalf("unexpected id %q", tgt.ID())
	}
	if tgt.Platform() != Platform("ios-simulator") {
		t.Fatalf("unexpected platform %q", tgt.Platform())
	}
	if err := tgt.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (Target{OS: "tvos", Arch: ArchARM64, Triple: "x"}).Validate(); err == nil {
		t.Fatalf("expected unknown os to fail")
	}
}

func TestProfileDir(t *testing.T) {
	tests := map[Profile]string{
		"dev":             "debug",
		"test":            "debug",
		"release":         "release",
		"bench":           "release",
		"release-smaller": "release-smaller",
	}
	for p, want := range tests {
		if got := p.Dir(); got != want {
			t.Errorf("Profile(%q).Dir() = %q, want %q", p, got, want)
		}
	}
}
