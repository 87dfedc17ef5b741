// Package crate reads Cargo manifests to check the library can be bundled.
package crate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManifestName is the cargo manifest file name.
const ManifestName = "Cargo.toml"

// ErrPackageNotFound is returned when no manifest declares the package.
var ErrPackageNotFound = errors.New("package not found in workspace")

// Manifest is the subset of Cargo.toml xcforge reads.
type Manifest struct {
	Package *struct {
		Name    string `toml:"name"`
		Version any    `toml:"version"`
	} `toml:"package"`
	Lib *struct {
		Name      string   `toml:"name"`
		CrateType []string `toml:"crate-type"`
	} `toml:"lib"`
	Workspace *struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
	Profile map[string]toml.Primitive `toml:"profile"`

	// Path is the manifest file this was read from.
	Path string `toml:"-"`
}

// builtinProfiles need no [profile.*] section.
var builtinProfiles = []string{"dev", "release", "test", "bench"}

// Read parses the manifest at path.
func Read(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	m.Path = path
	return &m, nil
}

// PackageName returns the package name, or "" for a virtual manifest.
func (m *Manifest) PackageName() string {
	if m.Package == nil {
		return ""
	}
	return m.Package.Name
}

// LibraryName is the artifact name cargo uses: [lib].name, or the package
// name with dashes replaced.
func (m *Manifest) LibraryName() string {
	if m.Lib != nil && m.Lib.Name != "" {
		return m.Lib.Name
	}
	return strings.ReplaceAll(m.PackageName(), "-", "_")
}

// CrateTypes returns the declared [lib] crate types.
func (m *Manifest) CrateTypes() []string {
	if m.Lib == nil {
		return nil
	}
	return m.Lib.CrateType
}

// CheckCrateTypes reports the crate types the bundle needs but the
// manifest does not declare. Every target needs a static archive and the
// reference target a dynamic library.
func (m *Manifest) CheckCrateTypes() error {
	var missing []string
	for _, want := range []string{"staticlib", "cdylib"} {
		if !slices.Contains(m.CrateTypes(), want) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: [lib] crate-type must include %s", m.Path, strings.Join(missing, " and "))
	}
	return nil
}

// HasProfile reports whether name is a builtin profile or declared in
// [profile.<name>].
func (m *Manifest) HasProfile(name string) bool {
	if slices.Contains(builtinProfiles, name) {
		return true
	}
	_, ok := m.Profile[name]
	return ok
}

// Workspace is a cargo workspace root together with the manifest of the
// selected package.
type Workspace struct {
	Root    *Manifest
	Package *Manifest
}

// Find locates pkg under the workspace rooted at dir. An empty pkg selects
// the root package.
func Find(dir, pkg string) (*Workspace, error) {
	root, err := Read(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, err
	}
	if pkg == "" || root.PackageName() == pkg {
		if root.Package == nil {
			return nil, fmt.Errorf("%s is a virtual manifest: %w", root.Path, ErrPackageNotFound)
		}
		return &Workspace{Root: root, Package: root}, nil
	}
	if root.Workspace == nil {
		return nil, fmt.Errorf("%s declares %q, not %q: %w", root.Path, root.PackageName(), pkg, ErrPackageNotFound)
	}

	for _, member := range root.Workspace.Members {
		dirs, err := filepath.Glob(filepath.Join(dir, member))
		if err != nil {
			return nil, fmt.Errorf("invalid workspace member %q: %w", member, err)
		}
		for _, d := range dirs {
			path := filepath.Join(d, ManifestName)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			m, err := Read(path)
			if err != nil {
				return nil, err
			}
			if m.PackageName() == pkg {
				return &Workspace{Root: root, Package: m}, nil
			}
		}
	}
	return nil, fmt.Errorf("%q: %w", pkg, ErrPackageNotFound)
}

// Check verifies the package can produce the bundle inputs with profile.
// Profiles are a workspace-level setting.
func (w *Workspace) Check(profile string) error {
	var problems []string
	if err := w.Package.CheckCrateTypes(); err != nil {
		problems = append(problems, err.Error())
	}
	if profile != "" && !w.Root.HasProfile(profile) {
		problems = append(problems, fmt.Sprintf("%s: profile %q is not defined", w.Root.Path, profile))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
