//go:build windows

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

type terminateStopper struct{}

// DefaultStopper terminates the process; Windows has no catchable SIGTERM
// for console programs started without a console.
func DefaultStopper() Stopper {
	return terminateStopper{}
}

func (terminateStopper) RequestStop(p *os.Process) error {
	return kill(p)
}

func (terminateStopper) ForceKill(p *os.Process) error {
	return kill(p)
}

func kill(p *os.Process) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
