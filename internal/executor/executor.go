// Package executor runs an external command and captures its output.
package executor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by Execute after Close.
var ErrClosed = errors.New("executor is closed")

// Executor runs one external command with varying arguments.
type Executor struct {
	cmd    string
	closed bool
	mx     sync.RWMutex
}

// New creates a new Executor.
func New(cfg Config) *Executor {
	return &Executor{
		cmd: cfg.Command,
	}
}

// Command returns the executable this executor runs.
func (e *Executor) Command() string {
	return e.cmd
}

// Start checks that the command exists on this system.
func (e *Executor) Start() error {
	if _, err := exec.LookPath(e.cmd); err != nil {
		return errors.Wrapf(err, "command %s not found", e.cmd)
	}
	return nil
}

// Execute runs the command with args, writing stdin to its standard input
// when non-nil, and returns its standard output.
func (e *Executor) Execute(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	stdout, stderr, err := e.executeWithOutput(ctx, stdin, args)
	if err != nil {
		return stdout, errors.Wrapf(err, "command failed: %s", strings.TrimSpace(string(stderr)))
	}
	return stdout, nil
}

func (e *Executor) executeWithOutput(ctx context.Context, stdin []byte, args []string) ([]byte, []byte, error) {
	e.mx.RLock()
	defer e.mx.RUnlock()

	if e.closed {
		return nil, nil, ErrClosed
	}

	cmd := exec.CommandContext(ctx, e.cmd, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	stdout, err := cmd.Output()
	if err != nil {
		var stderr []byte
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = exitErr.Stderr
		}
		return stdout, stderr, err
	}

	return stdout, nil, nil
}

// Close marks the executor closed. It is safe to call more than once.
func (e *Executor) Close() error {
	e.mx.Lock()
	defer e.mx.Unlock()

	e.closed = true
	return nil
}
