package toolchain

import (
	"errors"
	"strings"

	"github.com/dosanma1/xcforge/internal/domain"
)

// maxDiagnosticLines bounds how much tool output ends up in an error message.
const maxDiagnosticLines = 8

var hints = []struct {
	match string
	hint  string
}{
	{"target may not be installed", "the Rust target is missing; run 'xcforge setup' or drop --skip-provision"},
	{"could not find `Cargo.toml`", "workspace does not contain Cargo.toml; check 'workspace' in xcforge.yaml"},
	{"no such command: `run`", "cargo is too old to run the binding generator"},
	{"requires Xcode", "xcodebuild needs a full Xcode install; check xcode-select -p or DEVELOPER_DIR"},
	{"can't figure out the architecture type", "lipo input is not a Mach-O archive"},
}

// DiagnosticTail extracts the lines of tool output most likely to explain a
// failure: error lines if there are any, otherwise the last lines printed.
func DiagnosticTail(output []byte) string {
	lines := strings.Split(strings.ReplaceAll(string(output), "\r\n", "\n"), "\n")

	var relevant []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(lower, "error") || strings.HasPrefix(lower, "fatal") ||
			strings.Contains(lower, ": error:") {
			relevant = append(relevant, trimmed)
		}
	}

	if len(relevant) == 0 {
		for i := len(lines) - 1; i >= 0 && len(relevant) < maxDiagnosticLines; i-- {
			if s := strings.TrimSpace(lines[i]); s != "" {
				relevant = append([]string{s}, relevant...)
			}
		}
	}

	if len(relevant) > maxDiagnosticLines {
		relevant = relevant[:maxDiagnosticLines]
		relevant = append(relevant, "... (run with --verbose for full output)")
	}

	out := strings.Join(relevant, "\n")
	for _, h := range hints {
		if strings.Contains(string(output), h.match) {
			out += "\nhint: " + h.hint
			break
		}
	}
	return out
}

// StageFailure converts a Runner error into a StageError, carrying the exit
// status and diagnostic tail when the tool itself failed.
func StageFailure(stage domain.Stage, target string, err error) *domain.StageError {
	var se *domain.StageError
	if errors.As(err, &se) {
		return se
	}

	out := &domain.StageError{Stage: stage, Target: target, Status: -1, Err: err}
	var ee *ExitError
	if errors.As(err, &ee) {
		out.Status = ee.ExitCode
		out.Diagnostics = DiagnosticTail(ee.Output)
	}
	return out
}
