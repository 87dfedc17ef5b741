// Package toolchain runs the external tools the pipeline depends on and
// provisions the compiler toolchain.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/dosanma1/xcforge/internal/logger"
)

// Command is one external tool invocation. Dir is mandatory: no tool ever
// inherits the process working directory.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env holds extra KEY=VALUE pairs appended to the process environment.
	Env []string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is the outcome of a successful invocation.
type Result struct {
	Output   []byte
	Duration time.Duration
}

// ExitError is returned when a tool exits with a non-zero status.
type ExitError struct {
	Command  string
	ExitCode int
	Output   []byte
	Err      error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Runner runs external commands.
type Runner interface {
	Run(ctx context.Context, c Command) (*Result, error)
}

// Executor is the Runner backed by os/exec.
type Executor struct {
	verbose bool
	stream  io.Writer
}

// NewExecutor creates an executor. When verbose is set, tool output is
// streamed to stderr as well as captured.
func NewExecutor(verbose bool) *Executor {
	return &Executor{verbose: verbose, stream: os.Stderr}
}

// Run executes c and captures its combined output.
func (e *Executor) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Dir == "" || !filepath.IsAbs(c.Dir) {
		return nil, fmt.Errorf("%s: working directory must be an absolute path, got %q", c.Name, c.Dir)
	}

	cmd := exec.CommandContext(ctx, ResolveTool(c.Name), c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.WaitDelay = 5 * time.Second

	var buf bytes.Buffer
	if e.verbose && e.stream != nil {
		w := io.MultiWriter(&buf, e.stream)
		cmd.Stdout = w
		cmd.Stderr = w
	} else {
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	log := logger.L().With("cmd", c.String(), "dir", c.Dir)
	log.Debug("exec.start")

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Info("exec.cancelled", "duration", elapsed)
			return nil, fmt.Errorf("%s: %w", c.Name, ctxErr)
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			log.Info("exec.failed", "exit_code", ee.ExitCode(), "duration", elapsed)
			return nil, &ExitError{
				Command:  c.String(),
				ExitCode: ee.ExitCode(),
				Output:   buf.Bytes(),
				Err:      err,
			}
		}
		log.Info("exec.error", "error", err)
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}

	log.Debug("exec.done", "duration", elapsed)
	return &Result{Output: buf.Bytes(), Duration: elapsed}, nil
}

// ResolveTool returns the binary to run for name. An environment variable
// named after the tool (CARGO, RUSTUP, LIPO, XCODEBUILD) overrides it.
func ResolveTool(name string) string {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return name
}
