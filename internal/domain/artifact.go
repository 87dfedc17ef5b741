package domain

import "path/filepath"

// ArtifactKind represents the type of file produced by a per-target build.
type ArtifactKind string

const (
	// ArtifactStaticArchive is a static library (lib<name>.a).
	ArtifactStaticArchive ArtifactKind = "static-archive"
	// ArtifactDynamicLibrary is a shared library (lib<name>.dylib).
	ArtifactDynamicLibrary ArtifactKind = "dynamic-library"
)

// Library names the crate being packaged.
type Library struct {
	// Package is the cargo package passed to --package.
	Package string `json:"package" yaml:"package"`
	// Name is the library name without the lib prefix or extension.
	Name string `json:"name" yaml:"name"`
}

// StaticFile returns the static archive file name, e.g. "libbdkffi.a".
func (l Library) StaticFile() string {
	return "lib" + l.Name + ".a"
}

// DynamicFile returns the shared library file name, e.g. "libbdkffi.dylib".
func (l Library) DynamicFile() string {
	return "lib" + l.Name + ".dylib"
}

// BuildArtifact is one compiled file for one target. It is never modified
// after the builder returns it.
type BuildArtifact struct {
	Target  Target       `json:"target"`
	Kind    ArtifactKind `json:"kind"`
	Path    string       `json:"path"`
	Profile Profile      `json:"profile"`
}

// FileName returns the base name of the artifact.
func (a BuildArtifact) FileName() string {
	return filepath.Base(a.Path)
}

// TargetBuild is the result of compiling the library for one target.
type TargetBuild struct {
	Target  Target
	Archive BuildArtifact
	// Dylib is only produced for the reference target.
	Dylib *BuildArtifact
}

// BindingOutput is the set of files the binding generator produced.
type BindingOutput struct {
	Dir         string
	SourceFiles []string
	Header      string
	ModuleMap   string
}

// MergedArtifact is a fat archive spanning several architectures of one platform.
type MergedArtifact struct {
	Platform Platform
	// Targets are sorted by architecture.
	Targets []Target
	Archs   []Arch
	Path    string
}

// HeaderSet is the relocated header directory handed to the assembler.
type HeaderSet struct {
	Dir       string
	Header    string
	ModuleMap string
}

// PlatformLibrary pairs one platform's library with its header directory.
type PlatformLibrary struct {
	Platform    Platform
	LibraryPath string
	HeaderDir   string
	// Merged reports whether LibraryPath is a fat archive.
	Merged bool
}

// Bundle is the final multi-platform package.
type Bundle struct {
	Path    string
	Entries []PlatformLibrary
}
