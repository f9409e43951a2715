// Package runner invokes external programs such as document converters.
//
// Engine code depends on the Runner interface; Exec runs real processes and
// Recorder records invocations for tests.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jamesainslie/snsync/pkg/snsync/logging"
)

// DefaultTimeout bounds a single external command. Org exports of large files
// through LaTeX can take minutes.
const DefaultTimeout = 10 * time.Minute

// Runner runs an external command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// CommandError describes a command that could not be started or exited non-zero.
type CommandError struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %s %s failed: %v", e.Name, strings.Join(e.Args, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLine(out)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Exec runs commands as child processes.
type Exec struct {
	// Timeout bounds each command. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Dir is the working directory. Empty uses the current directory.
	Dir string
}

// Run starts name with args and waits for it. Combined output is logged at
// debug level and attached to the returned error.
func (e *Exec) Run(ctx context.Context, name string, args ...string) error {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logging.Get("runner")
	log.Debug("running command", "name", name, "args", args)

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.Dir
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &CommandError{Name: name, Args: args, Output: out.String(), Err: err}
	}

	if out.Len() > 0 {
		log.Debug("command output", "name", name, "output", out.String())
	}
	return nil
}

// Call is one recorded invocation.
type Call struct {
	Name string
	Args []string
}

// Recorder is a Runner that records calls instead of starting processes.
// Handler, when set, runs for every call and its error is returned; tests use
// it to simulate a converter writing its output.
type Recorder struct {
	Handler func(ctx context.Context, call Call) error

	mu    sync.Mutex
	calls []Call
}

// Run records the call and delegates to Handler.
func (r *Recorder) Run(ctx context.Context, name string, args ...string) error {
	call := Call{Name: name, Args: append([]string(nil), args...)}

	r.mu.Lock()
	r.calls = append(r.calls, call)
	handler := r.Handler
	r.mu.Unlock()

	if handler != nil {
		return handler(ctx, call)
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ensure implementations satisfy Runner.
var (
	_ Runner = (*Exec)(nil)
	_ Runner = (*Recorder)(nil)
)
