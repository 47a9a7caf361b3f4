//go:build !windows

package procctl

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/codefionn/hackerai-desktop/internal/logger"
)

// configureProcessGroup runs the command in its own process group so signals
// reach the whole tree (parent + children).
func configureProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func processGroupID(cmd *exec.Cmd) int {
	if cmd == nil || cmd.Process == nil {
		return 0
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return 0
	}
	return pgid
}

type platformController struct{}

func (platformController) TerminateGracefully(p *Process) error {
	return signal(p, syscall.SIGTERM)
}

func (platformController) ForceKill(p *Process) error {
	return signal(p, syscall.SIGKILL)
}

func (platformController) Poll(p *Process) bool {
	return poll(p)
}

func signal(p *Process, sig syscall.Signal) error {
	if !poll(p) {
		return nil
	}

	if p.pgid > 0 {
		logger.Debug("procctl: sending %s to process group %d", sig, p.pgid)
		err := syscall.Kill(-p.pgid, sig)
		if err == nil || (errors.Is(err, syscall.ESRCH) && !poll(p)) {
			return nil
		}
		logger.Warn("procctl: signalling group %d failed: %v, falling back to pid %d", p.pgid, err, p.pid)
	}

	if err := p.cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
