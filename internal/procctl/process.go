// Package procctl starts child processes in their own process group and
// terminates them as a unit.
package procctl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// DefaultOutputLimit bounds each captured stream.
const DefaultOutputLimit = 64 * 1024

// ErrGracefulUnsupported is returned by TerminateGracefully on platforms
// without a polite termination signal.
var ErrGracefulUnsupported = errors.New("graceful termination not supported on this platform")

// Controller terminates processes. Implementations are selected per platform.
type Controller interface {
	// TerminateGracefully asks the process group to exit.
	TerminateGracefully(p *Process) error
	// ForceKill kills the process group.
	ForceKill(p *Process) error
	// Poll reports whether the process is still running. It never blocks.
	Poll(p *Process) bool
}

// Process is a started child. Its exit is collected by a single waiter
// goroutine, so Wait on the underlying command is never called twice.
type Process struct {
	cmd       *exec.Cmd
	pid       int
	pgid      int
	startedAt time.Time

	done    chan struct{}
	mu      sync.Mutex
	exitErr error

	stdout *tailBuffer
	stderr *tailBuffer
}

// Start launches cmd in a new process group with stdout and stderr captured
// into bounded buffers. cmd.Stdout and cmd.Stderr must be unset.
func Start(cmd *exec.Cmd) (*Process, error) {
	if cmd == nil {
		return nil, errors.New("nil command")
	}
	if cmd.Stdout != nil || cmd.Stderr != nil {
		return nil, errors.New("command output is already redirected")
	}

	p := &Process{
		cmd:    cmd,
		done:   make(chan struct{}),
		stdout: newTailBuffer(DefaultOutputLimit),
		stderr: newTailBuffer(DefaultOutputLimit),
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = time.Second
	}
	configureProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	p.pid = cmd.Process.Pid
	p.pgid = processGroupID(cmd)
	p.startedAt = time.Now()

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

// Pid returns the OS process id.
func (p *Process) Pid() int {
	return p.pid
}

// StartedAt returns when the process was started.
func (p *Process) StartedAt() time.Time {
	return p.startedAt
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits or ctx is done.
func (p *Process) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.ExitErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExitErr returns the error from the exited command, nil while running or on
// a clean exit.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

// ExitCode returns the exit code, or -1 while running or when killed by a signal.
func (p *Process) ExitCode() int {
	if !p.Exited() || p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Stdout returns the tail of the captured standard output.
func (p *Process) Stdout() string {
	return p.stdout.String()
}

// Stderr returns the tail of the captured standard error.
func (p *Process) Stderr() string {
	return p.stderr.String()
}

// New returns the controller for the current platform.
func New() Controller {
	return platformController{}
}

func poll(p *Process) bool {
	return p != nil && !p.Exited()
}
