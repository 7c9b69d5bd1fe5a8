package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/toolchain"
)

// Launcher compiles (when needed) and starts a program described by a toolchain.
type Launcher struct {
	CompileTimeout time.Duration
	Stopper        Stopper
	Logger         *zap.Logger
}

// Compile runs the toolchain's compile step for source, producing output.
// A missing primary compiler is retried once with the alternate.
func (l *Launcher) Compile(ctx context.Context, tc toolchain.Toolchain, source, output, dir string) error {
	args := tc.CompileArgs(source, output)
	err := l.compileOnce(ctx, args, dir)
	if !errors.Is(err, exec.ErrNotFound) {
		return err
	}

	alt := tc.AltCompileArgs(source, output)
	if alt == nil {
		return newError(ErrToolchainMissing, fmt.Sprintf("%s not found in PATH", args[0]), err)
	}

	l.Logger.Info("compiler not found, trying alternate",
		zap.String("compiler", args[0]), zap.String("alternate", alt[0]))

	err = l.compileOnce(ctx, alt, dir)
	if errors.Is(err, exec.ErrNotFound) {
		return newError(ErrToolchainMissing,
			fmt.Sprintf("please install a compiler (%s or %s)", args[0], alt[0]), err)
	}
	return err
}

// compileWaitDelay bounds how long Run waits for the compiler's output pipes
// to close once the compiler has been killed.
const compileWaitDelay = time.Second

// compileOnce returns the raw exec error when the binary is missing so the
// caller can decide whether to fall back.
//
// The compiler leads its own process group and a timeout kills the whole
// group, so helpers such as cc1 cannot keep the output pipes open.
func (l *Launcher) compileOnce(ctx context.Context, args []string, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, l.CompileTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return l.Stopper.ForceKill(cmd.Process)
	}
	cmd.WaitDelay = compileWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(ErrCompileFailure,
			fmt.Sprintf("compilation timed out after %s", l.CompileTimeout), ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		diag := strings.TrimSpace(stderr.String())
		if diag == "" {
			diag = strings.TrimSpace(stdout.String())
		}
		if diag == "" {
			diag = fmt.Sprintf("%s exited with status %d", args[0], exitErr.ExitCode())
		}
		return newError(ErrCompileFailure, diag, err)
	}
	return newError(ErrInternal, fmt.Sprintf("running %s", args[0]), err)
}

// Launch starts the toolchain's run command with piped standard streams.
// A missing interpreter is retried once with the alternate.
func (l *Launcher) Launch(tc toolchain.Toolchain, source, output, dir string) (*Process, error) {
	args := tc.RunArgs(source, output)
	if len(args) == 0 {
		return nil, newError(ErrLaunchFailure, "toolchain has no run command", nil)
	}

	p, err := startProcess(args, dir, l.Stopper)
	if errors.Is(err, exec.ErrNotFound) {
		alt := tc.AltRunArgs(source, output)
		if alt == nil {
			return nil, newError(ErrToolchainMissing, fmt.Sprintf("%s not found in PATH", args[0]), err)
		}
		l.Logger.Info("interpreter not found, trying alternate",
			zap.String("interpreter", args[0]), zap.String("alternate", alt[0]))
		p, err = startProcess(alt, dir, l.Stopper)
		if errors.Is(err, exec.ErrNotFound) {
			return nil, newError(ErrToolchainMissing,
				fmt.Sprintf("please install %s or %s", args[0], alt[0]), err)
		}
	}
	if err != nil {
		return nil, newError(ErrLaunchFailure, err.Error(), err)
	}
	return p, nil
}
