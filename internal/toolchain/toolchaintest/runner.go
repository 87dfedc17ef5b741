// Package toolchaintest provides a scripted Runner for adapter tests.
package toolchaintest

import (
	"context"
	"strings"
	"sync"

	"github.com/dosanma1/xcforge/internal/toolchain"
)

// Handler reacts to one command. It can create files to simulate tool output.
type Handler func(c toolchain.Command) (*toolchain.Result, error)

// Runner records every command and dispatches it to a Handler.
type Runner struct {
	mu       sync.Mutex
	commands []toolchain.Command
	handler  Handler
}

var _ toolchain.Runner = (*Runner)(nil)

// NewRunner creates a Runner. A nil handler succeeds with empty output.
func NewRunner(h Handler) *Runner {
	return &Runner{handler: h}
}

func (r *Runner) Run(ctx context.Context, c toolchain.Command) (*toolchain.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, c)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.handler == nil {
		return &toolchain.Result{}, nil
	}
	return r.handler(c)
}

// Commands returns a copy of the recorded commands.
func (r *Runner) Commands() []toolchain.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]toolchain.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Lines returns the recorded commands as "name arg arg" strings.
func (r *Runner) Lines() []string {
	cmds := r.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

// Fail builds the error a tool exiting with code and output would produce.
func Fail(c toolchain.Command, code int, output string) error {
	return &toolchain.ExitError{Command: c.String(), ExitCode: code, Output: []byte(output)}
}

// Flag returns the value following flag in args, or "".
func Flag(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(a, flag+"=") {
			return strings.TrimPrefix(a, flag+"=")
		}
	}
	return ""
}
