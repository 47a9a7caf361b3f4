//go:build windows

package procctl

import (
	"errors"
	"os"
	"os/exec"
)

func configureProcessGroup(cmd *exec.Cmd) {
	// Process groups are handled differently on Windows.
	_ = cmd
}

func processGroupID(cmd *exec.Cmd) int {
	return 0
}

type platformController struct{}

func (platformController) TerminateGracefully(p *Process) error {
	return ErrGracefulUnsupported
}

func (platformController) ForceKill(p *Process) error {
	if !poll(p) {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (platformController) Poll(p *Process) bool {
	return poll(p)
}
