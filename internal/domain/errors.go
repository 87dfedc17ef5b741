package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per failing stage. StageError matches them with errors.Is.
var (
	ErrInvalidMatrix = errors.New("invalid target matrix")
	ErrProvisioning  = errors.New("provisioning error")
	ErrBuild         = errors.New("build error")
	ErrGeneration    = errors.New("generation error")
	ErrMerge         = errors.New("merge error")
	ErrRelocation    = errors.New("relocation error")
	ErrAssembly      = errors.New("assembly error")
)

// Stage names a pipeline stage.
type Stage string

const (
	StageMatrix    Stage = "matrix"
	StageProvision Stage = "provision"
	StageBuild     Stage = "build"
	StageGenerate  Stage = "generate"
	StageMerge     Stage = "merge"
	StageRelocate  Stage = "relocate"
	StageAssemble  Stage = "assemble"
)

// Process exit codes. Each failing stage has its own.
const (
	ExitOK         = 0
	ExitGeneric    = 1
	ExitConfig     = 2
	ExitProvision  = 10
	ExitBuild      = 11
	ExitGeneration = 12
	ExitMerge      = 13
	ExitRelocation = 14
	ExitAssembly   = 15
)

var stageInfo = map[Stage]struct {
	sentinel error
	exit     int
}{
	StageMatrix:    {ErrInvalidMatrix, ExitConfig},
	StageProvision: {ErrProvisioning, ExitProvision},
	StageBuild:     {ErrBuild, ExitBuild},
	StageGenerate:  {ErrGeneration, ExitGeneration},
	StageMerge:     {ErrMerge, ExitMerge},
	StageRelocate:  {ErrRelocation, ExitRelocation},
	StageAssemble:  {ErrAssembly, ExitAssembly},
}

// StageError wraps a failure with the stage it happened in and whatever
// diagnostics the external tool printed.
type StageError struct {
	Stage Stage
	// Target is the target id for per-target failures.
	Target string
	// Status is the exit status of the external tool, or -1 when no tool ran.
	Status      int
	Diagnostics string
	Err         error
}

// NewStageError builds a StageError without tool output.
func NewStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Status: -1, Err: err}
}

// WithTarget sets the target id and returns e.
func (e *StageError) WithTarget(id string) *StageError {
	e.Target = id
	return e
}

func (e *StageError) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := string(e.Stage)
	if info, ok := stageInfo[e.Stage]; ok {
		base = info.sentinel.Error()
	}
	if e.Target != "" {
		base += fmt.Sprintf(" (target=%s)", e.Target)
	}
	if e.Status > 0 {
		base += fmt.Sprintf(" (exit status %d)", e.Status)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	if e.Diagnostics != "" {
		base += "\n" + e.Diagnostics
	}
	return base
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel of this error's stage.
func (e *StageError) Is(target error) bool {
	if e == nil {
		return false
	}
	info, ok := stageInfo[e.Stage]
	return ok && info.sentinel == target
}

// ExitCode returns the process exit code for the stage.
func (e *StageError) ExitCode() int {
	if info, ok := stageInfo[e.Stage]; ok {
		return info.exit
	}
	return ExitGeneric
}

// IsStage reports whether err was raised by the given stage.
func IsStage(err error, stage Stage) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage == stage
	}
	return false
}

// ExitCode maps an error returned by the pipeline to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.ExitCode()
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ExitConfig
	}
	return ExitGeneric
}

// ConfigError reports an invalid configuration file or flag combination.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid config (path=%s): %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
