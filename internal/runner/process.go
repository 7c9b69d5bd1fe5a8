package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Stopper is the platform capability pair used to end a child process.
type Stopper interface {
	// RequestStop asks the process to exit on its own.
	RequestStop(p *os.Process) error
	// ForceKill ends the process immediately.
	ForceKill(p *os.Process) error
}

// Process is a running child with its three standard streams piped.
//
// The pipes are created with os.Pipe rather than Cmd.StdoutPipe so that
// Wait does not close the read ends while output is still buffered in them.
type Process struct {
	cmd     *exec.Cmd
	stopper Stopper

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	Started time.Time

	done     chan struct{}
	exitCode atomic.Int32
	waitErr  error // written before done is closed

	closeOnce sync.Once
}

// startProcess starts argv in dir with fresh pipes for stdin, stdout and stderr.
func startProcess(argv []string, dir string, stopper Stopper) (*Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	setProcessGroup(cmd)

	// Child ends are closed after Start; parent ends live on in Process.
	var childEnds, parentEnds []*os.File
	closeAll := func() {
		for _, f := range childEnds {
			_ = f.Close()
		}
		for _, f := range parentEnds {
			_ = f.Close()
		}
	}

	inR, inW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	childEnds, parentEnds = append(childEnds, inR), append(parentEnds, inW)

	outR, outW, err := os.Pipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	childEnds, parentEnds = append(childEnds, outW), append(parentEnds, outR)

	errR, errW, err := os.Pipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	childEnds, parentEnds = append(childEnds, errW), append(parentEnds, errR)

	cmd.Stdin = inR
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, err
	}
	for _, f := range childEnds {
		_ = f.Close()
	}

	p := &Process{
		cmd:     cmd,
		stopper: stopper,
		Stdin:   inW,
		Stdout:  outR,
		Stderr:  errR,
		Started: time.Now(),
		done:    make(chan struct{}),
	}
	p.exitCode.Store(-1)
	go p.waitLoop()
	return p, nil
}

func (p *Process) waitLoop() {
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	p.waitErr = err
	p.exitCode.Store(int32(code))
	close(p.done)
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports, without blocking, whether the process has exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit status, or -1 while running or when killed by a signal.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// WaitErr returns the error from Wait, or nil while running.
func (p *Process) WaitErr() error {
	if !p.Exited() {
		return nil
	}
	return p.waitErr
}

// Stop requests a graceful stop, waits up to grace, then force-kills.
// It reports whether a forced kill was needed.
func (p *Process) Stop(grace time.Duration) (forced bool, err error) {
	if p.Exited() {
		return false, nil
	}

	if err := p.stopper.RequestStop(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return false, fmt.Errorf("requesting stop: %w", err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return false, nil
	case <-timer.C:
	}

	if err := p.stopper.ForceKill(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return true, fmt.Errorf("killing process: %w", err)
	}
	<-p.done
	return true, nil
}

// closePipes releases the parent ends of all three pipes, unblocking any
// reader or writer still parked on them.
func (p *Process) closePipes() {
	p.closeOnce.Do(func() {
		_ = p.Stdin.Close()
		_ = p.Stdout.Close()
		_ = p.Stderr.Close()
	})
}
