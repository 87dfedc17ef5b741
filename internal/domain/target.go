// Package domain holds the value types shared by every stage of the bundle pipeline.
package domain

import (
	"fmt"
	"strings"
)

// OS identifies the operating system family a target is compiled for.
// Simulator targets form their own family because they ship as a separate
// slice of the bundle.
type OS string

const (
	OSMacOS        OS = "macos"
	OSIOS          OS = "ios"
	OSIOSSimulator OS = "ios-simulator"
)

// Arch is a CPU architecture as named by lipo and xcodebuild.
type Arch string

const (
	ArchARM64  Arch = "arm64"
	ArchX86_64 Arch = "x86_64"
)

// Target is one OS/architecture combination the library is compiled for.
type Target struct {
	OS     OS     `json:"os" yaml:"os"`
	Arch   Arch   `json:"arch" yaml:"arch"`
	Triple string `json:"triple" yaml:"triple"`
}

// ID returns the "os-arch" identifier used for target-scoped directories.
func (t Target) ID() string {
	return string(t.OS) + "-" + string(t.Arch)
}

// Platform returns the distributable platform the target belongs to.
func (t Target) Platform() Platform {
	return Platform(t.OS)
}

func (t Target) String() string {
	return fmt.Sprintf("%s (%s)", t.ID(), t.Triple)
}

// Validate checks that all fields are set and known.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Triple) == "" {
		return fmt.Errorf("target triple is required")
	}
	switch t.OS {
	case OSMacOS, OSIOS, OSIOSSimulator:
	default:
		return fmt.Errorf("target %s: unknown os %q", t.Triple, t.OS)
	}
	switch t.Arch {
	case ArchARM64, ArchX86_64:
	default:
		return fmt.Errorf("target %s: unknown arch %q", t.Triple, t.Arch)
	}
	return nil
}

// Platform is the identifier of one slice of the final bundle.
type Platform string

// Profile is the compiler build profile (e.g. "release-smaller").
type Profile string

// Dir returns the directory name cargo writes the profile's output into.
// The built-in test and bench profiles inherit from dev and release.
func (p Profile) Dir() string {
	switch p {
	case "dev", "test":
		return "debug"
	case "bench":
		return "release"
	}
	return string(p)
}
