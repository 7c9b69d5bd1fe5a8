//go:build !windows

package runner

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// The child leads its own process group so signals reach anything it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

type groupStopper struct{}

// DefaultStopper sends SIGTERM, then SIGKILL, to the child's process group.
func DefaultStopper() Stopper {
	return groupStopper{}
}

func (groupStopper) RequestStop(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

func (groupStopper) ForceKill(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

// signalGroup signals the group led by p, falling back to p alone when the
// group is already gone.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		err = p.Signal(sig)
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
