package sandbox

import (
	"context"
	"os/exec"

	"github.com/codefionn/hackerai-desktop/internal/procctl"
)

// ExecSpawner starts the runner as a real child process.
type ExecSpawner struct {
	// Dir is the working directory; empty inherits the daemon's.
	Dir string
	// Env is appended to the daemon's environment.
	Env []string
}

// Spawn starts name with args. ctx only gates the launch; the sandbox
// outlives it.
func (e ExecSpawner) Spawn(ctx context.Context, name string, args []string) (*procctl.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cmd := exec.Command(name, args...)
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.Env...)
	}
	return procctl.Start(cmd)
}
