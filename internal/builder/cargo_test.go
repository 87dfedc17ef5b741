package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dosanma1/xcforge/internal/domain"
	"github.com/dosanma1/xcforge/internal/toolchain"
	"github.com/dosanma1/xcforge/internal/toolchain/toolchaintest"
)

var iosDevice = domain.Target{OS: domain.OSIOS, Arch: domain.ArchARM64, Triple: "aarch64-apple-ios"}

func testOptions(t *testing.T) *BuildOptions {
	t.Helper()
	root := t.TempDir()
	return &BuildOptions{
		WorkspaceRoot: filepath.Join(root, "crate"),
		TargetDir:     filepath.Join(root, "out", "targets", iosDevice.ID(), "cargo"),
		Target:        iosDevice,
		Profile:       "release-smaller",
		Library:       domain.Library{Package: "bdk-ffi", Name: "bdkffi"},
		Toolchain:     "nightly",
	}
}

// fakeCargo writes the files cargo would produce for the requested target.
func fakeCargo(files ...string) toolchaintest.Handler {
	return func(c toolchain.Command) (*toolchain.Result, error) {
		dir := filepath.Join(toolchaintest.Flag(c.Args, "--target-dir"),
			toolchaintest.Flag(c.Args, "--target"),
			toolchaintest.Flag(c.Args, "--profile"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := os.WriteFile(filepath.Join(dir, f), []byte("!<arch>\n"), 0o644); err != nil {
				return nil, err
			}
		}
		return &toolchain.Result{}, nil
	}
}

func TestCargoBuildArgs(t *testing.T) {
	opts := testOptions(t)
	if err := os.MkdirAll(opts.WorkspaceRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.WorkspaceRoot, "Cargo.lock"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	runner := toolchaintest.NewRunner(fakeCargo("libbdkffi.a"))
	res, err := NewCargoBuilder(runner).Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cmds := runner.Commands()
	if len(cmds) != 1 {
		t.Fatalf("expected one cargo call, got %v", runner.Lines())
	}
	want := []string{
		"+nightly", "build",
		"--package", "bdk-ffi",
		"--profile", "release-smaller",
		"--target", "aarch64-apple-ios",
		"--target-dir", opts.TargetDir,
		"--locked",
	}
	if diff := cmp.Diff(want, cmds[0].Args); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}
	if cmds[0].Dir != opts.WorkspaceRoot {
		t.Fatalf("cargo ran in %q", cmds[0].Dir)
	}

	wantPath := filepath.Join(opts.TargetDir, "aarch64-apple-ios", "release-smaller", "libbdkffi.a")
	if res.Archive.Path != wantPath || res.Archive.Kind != domain.ArtifactStaticArchive {
		t.Fatalf("unexpected archive %+v", res.Archive)
	}
	if res.Dylib != nil {
		t.Fatalf("non-reference build must not report a dylib")
	}
}

func TestCargoBuildReferenceNeedsDylib(t *testing.T) {
	opts := testOptions(t)
	opts.Reference = true

	_, err := NewCargoBuilder(toolchaintest.NewRunner(fakeCargo("libbdkffi.a"))).Build(context.Background(), opts)
	if !errors.Is(err, domain.ErrBuild) {
		t.Fatalf("expected build error for missing dylib, got %v", err)
	}

	res, err := NewCargoBuilder(toolchaintest.NewRunner(fakeCargo("libbdkffi.a", "libbdkffi.dylib"))).Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Dylib == nil || res.Dylib.Kind != domain.ArtifactDynamicLibrary {
		t.Fatalf("expected dylib, got %+v", res.Dylib)
	}
}

func TestCargoBuildFailure(t *testing.T) {
	opts := testOptions(t)
	runner := toolchaintest.NewRunner(func(c toolchain.Command) (*toolchain.Result, error) {
		return nil, toolchaintest.Fail(c, 101, "   Compiling bdk-ffi\nerror[E0425]: cannot find value `x`\n")
	})

	_, err := NewCargoBuilder(runner).Build(context.Background(), opts)
	var se *domain.StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if se.Stage != domain.StageBuild || se.Target != "ios-arm64" || se.Status != 101 {
		t.Fatalf("unexpected error %+v", se)
	}
	if !strings.Contains(se.Diagnostics, "E0425") {
		t.Fatalf("diagnostics missing compiler error: %q", se.Diagnostics)
	}
}

func TestCargoBuildRemovesStaleArtifacts(t *testing.T) {
	opts := testOptions(t)
	b := NewCargoBuilder(nil)
	stale := filepath.Join(b.OutputDir(opts), "libbdkffi.a")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	// cargo "succeeds" without producing anything.
	b.runner = toolchaintest.NewRunner(nil)
	_, err := b.Build(context.Background(), opts)
	if !errors.Is(err, domain.ErrBuild) {
		t.Fatalf("expected build error, stale artifact was reused: %v", err)
	}
	if _, statErr := os.Stat(stale); !os.IsNotExist(statErr) {
		t.Fatalf("stale artifact still present")
	}
}

func TestCargoValidate(t *testing.T) {
	b := NewCargoBuilder(nil)
	opts := testOptions(t)
	opts.WorkspaceRoot = "relative/crate"
	if err := b.Validate(opts); err == nil {
		t.Fatalf("expected relative workspace root to be rejected")
	}
}

func TestRegistry(t *testing.T) {
	b, err := Get("cargo", toolchaintest.NewRunner(nil))
	if err != nil {
		t.Fatalf("cargo not registered: %v", err)
	}
	if b.Name() != "cargo" {
		t.Fatalf("unexpected builder %q", b.Name())
	}
	if _, err := Get("bazel", nil); err == nil {
		t.Fatalf("expected unknown builder to fail")
	}
	if err := DefaultRegistry.Register("cargo", nil); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
