package toolchain

import (
	"fmt"
	"os/exec"
	"strings"
)

// ToolRequirement describes an external tool the pipeline shells out to.
type ToolRequirement struct {
	// Name is the primary binary name.
	Name string
	// Alternatives can satisfy the requirement instead of Name.
	Alternatives []string
	// Optional tools are reported but never fail the check.
	Optional bool
	Purpose  string
}

// LipoTool is the archive merger. llvm-lipo is accepted where Apple's lipo
// is not installed.
var LipoTool = ToolRequirement{Name: "lipo", Alternatives: []string{"llvm-lipo"}, Purpose: "merge per-architecture archives"}

// PipelineTools lists the tools a full run needs. rustup is only required
// when provisioning is not skipped.
func PipelineTools(provision bool) []ToolRequirement {
	reqs := []ToolRequirement{
		{Name: "cargo", Purpose: "compile the library and run the binding generator"},
		LipoTool,
		{Name: "xcodebuild", Purpose: "assemble the XCFramework"},
	}
	if provision {
		reqs = append([]ToolRequirement{{Name: "rustup", Purpose: "install toolchain, components and targets"}}, reqs...)
	}
	return reqs
}

// MissingToolsError lists every required tool that could not be found.
type MissingToolsError struct {
	Missing []ToolRequirement
}

func (e *MissingToolsError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, r := range e.Missing {
		name := r.Name
		if len(r.Alternatives) > 0 {
			name += " (or " + strings.Join(r.Alternatives, ", ") + ")"
		}
		if r.Purpose != "" {
			name += ": " + r.Purpose
		}
		parts = append(parts, name)
	}
	return "required tools not found: " + strings.Join(parts, "; ")
}

// CheckRequiredTools verifies every non-optional requirement is on PATH.
func CheckRequiredTools(reqs []ToolRequirement) error {
	var missing []ToolRequirement
	for _, r := range reqs {
		if _, ok := FindTool(r); ok || r.Optional {
			continue
		}
		missing = append(missing, r)
	}
	if len(missing) > 0 {
		return &MissingToolsError{Missing: missing}
	}
	return nil
}

// FindTool returns the path of the first binary satisfying r.
func FindTool(r ToolRequirement) (string, bool) {
	for _, name := range append([]string{r.Name}, r.Alternatives...) {
		if path, err := exec.LookPath(ResolveTool(name)); err == nil {
			return path, true
		}
	}
	return "", false
}

// ToolStatus is one line of a tool availability report.
type ToolStatus struct {
	Requirement ToolRequirement
	Path        string
	Found       bool
}

// Report checks every requirement without failing.
func Report(reqs []ToolRequirement) []ToolStatus {
	out := make([]ToolStatus, 0, len(reqs))
	for _, r := range reqs {
		path, ok := FindTool(r)
		out = append(out, ToolStatus{Requirement: r, Path: path, Found: ok})
	}
	return out
}

func (s ToolStatus) String() string {
	if s.Found {
		return fmt.Sprintf("%s: %s", s.Requirement.Name, s.Path)
	}
	return fmt.Sprintf("%s: not found", s.Requirement.Name)
}
