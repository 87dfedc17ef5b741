package crate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

const ffiManifest = `[package]
name = "bdk-ffi"
version = "1.0.0"

[lib]
crate-type = ["lib", "staticlib", "cdylib"]
name = "bdkffi"

[profile.release-smaller]
inherits = "release"
opt-level = 'z'
`

func TestFindRootPackage(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, ManifestName), ffiManifest)

	ws, err := Find(dir, "bdk-ffi")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got := ws.Package.LibraryName(); got != "bdkffi" {
		t.Errorf("LibraryName() = %q", got)
	}
	if err := ws.Check("release-smaller"); err != nil {
		t.Errorf("Check() error = %v", err)
	}
	if err := ws.Check("release"); err != nil {
		t.Errorf("Check(release) error = %v", err)
	}
}

func TestFindWorkspaceMember(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, ManifestName), "[workspace]\nmembers = [\"crates/*\"]\n\n[profile.release-smaller]\ninherits = \"release\"\n")
	write(t, filepath.Join(dir, "crates", "core", ManifestName), "[package]\nname = \"core\"\nversion = \"0.1.0\"\n")
	write(t, filepath.Join(dir, "crates", "my-ffi", ManifestName), "[package]\nname = \"my-ffi\"\nversion.workspace = true\n\n[lib]\ncrate-type = [\"staticlib\", \"cdylib\"]\n")

	ws, err := Find(dir, "my-ffi")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got := ws.Package.LibraryName(); got != "my_ffi" {
		t.Errorf("LibraryName() = %q", got)
	}
	if err := ws.Check("release-smaller"); err != nil {
		t.Errorf("Check() error = %v", err)
	}

	if _, err := Find(dir, "missing"); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("Find(missing) error = %v", err)
	}
	if _, err := Find(dir, ""); !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("Find(virtual) error = %v", err)
	}
}

func TestCheckReportsProblems(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, ManifestName), "[package]\nname = \"x\"\nversion = \"0.1.0\"\n\n[lib]\ncrate-type = [\"cdylib\"]\n")

	ws, err := Find(dir, "")
	if err != nil {
		t.Fatal(err)
	}
	err = ws.Check("release-smaller")
	if err == nil {
		t.Fatal("Check() succeeded, want error")
	}
	for _, want := range []string{"staticlib", `profile "release-smaller"`} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
	if strings.Contains(err.Error(), "cdylib") {
		t.Errorf("error %q reports a declared crate type", err)
	}
}
