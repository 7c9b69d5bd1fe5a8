package main

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chzyer/readline"

	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/toolchain"
	"github.com/michaelbrown/runbox/internal/workspace"
)

type scriptedReader struct {
	lines  []string
	err    error // returned once lines run out
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", r.err
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) Stdout() io.Writer { return &r.stdout }
func (r *scriptedReader) Stderr() io.Writer { return &r.stderr }

// greeter asks for a name, then is busy for one poll, then greets.
type greeter struct {
	inputs     []string
	polls      int
	terminated bool
}

func (g *greeter) Start(context.Context, string, string) (*runner.Result, error) {
	return &runner.Result{Status: runner.StatusRunning, SessionID: "g", Output: "Name:", WaitingForInput: true}, nil
}

func (g *greeter) SubmitInput(_ context.Context, _, text string) (*runner.Result, error) {
	g.inputs = append(g.inputs, text)
	return &runner.Result{Status: runner.StatusRunning, SessionID: "g", Output: "thinking"}, nil
}

func (g *greeter) Poll(context.Context, string) (*runner.Result, error) {
	g.polls++
	return &runner.Result{Status: runner.StatusCompleted, Output: "Hi " + g.inputs[0], Error: "warn"}, nil
}

func (g *greeter) Terminate(context.Context, string) (*runner.Result, error) {
	g.terminated = true
	return &runner.Result{Status: runner.StatusTerminated}, nil
}

func TestConverse(t *testing.T) {
	g := &greeter{}
	rl := &scriptedReader{lines: []string{"Ada"}}

	if err := converse(context.Background(), g, rl, "code", "python", time.Millisecond); err != nil {
		t.Fatalf("converse: %v", err)
	}
	if len(g.inputs) != 1 || g.inputs[0] != "Ada" {
		t.Errorf("inputs = %q", g.inputs)
	}
	if g.polls != 1 {
		t.Errorf("polls = %d, want 1", g.polls)
	}
	if got, want := rl.stdout.String(), "Name:\nthinking\nHi Ada\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if !strings.Contains(rl.stderr.String(), "warn") {
		t.Errorf("stderr = %q", rl.stderr.String())
	}
	if g.terminated {
		t.Error("completed session was terminated")
	}
}

func TestConverseInterruptTerminates(t *testing.T) {
	g := &greeter{}
	rl := &scriptedReader{err: readline.ErrInterrupt}

	if err := converse(context.Background(), g, rl, "code", "python", time.Millisecond); err != nil {
		t.Fatalf("converse: %v", err)
	}
	if !g.terminated {
		t.Error("Ctrl+C did not terminate the session")
	}
	if !strings.Contains(rl.stdout.String(), "(terminated)") {
		t.Errorf("stdout = %q", rl.stdout.String())
	}
}

func TestLanguageHint(t *testing.T) {
	table := toolchain.Table{
		"python": {Extension: ".py"},
		"c":      {Extension: ".c"},
	}
	if got := languageHint(table); got != ".c, .py" {
		t.Errorf("languageHint = %q", got)
	}
}

func TestConversePromptsWithoutNewline(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a unix shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	timing := runner.DefaultTiming()
	timing.StartSettle = 100 * time.Millisecond
	timing.InputSettle = 100 * time.Millisecond
	timing.InputWindow = 500 * time.Millisecond
	timing.ReapInterval = 0
	m := runner.NewManager(
		runner.WithToolchains(toolchain.Table{
			"sh": {Extension: ".sh", Run: []string{"sh", toolchain.SourcePlaceholder}},
		}),
		runner.WithProvisioner(workspace.NewTempProvisioner(t.TempDir())),
		runner.WithTiming(timing),
	)
	defer m.Close()

	code := `printf 'Enter name: '; read a; printf 'Enter age: '; read b; echo "$a $b"`
	rl := &scriptedReader{lines: []string{"John", "25"}, err: io.EOF}

	done := make(chan error, 1)
	go func() {
		done <- converse(context.Background(), m, rl, code, "sh", 10*time.Millisecond)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("converse: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("converse never finished")
	}

	if len(rl.lines) != 0 {
		t.Errorf("unread lines = %q", rl.lines)
	}
	out := rl.stdout.String()
	if !strings.Contains(out, "John 25") {
		t.Errorf("stdout = %q", out)
	}
	if strings.Contains(out, "(terminated)") {
		t.Errorf("session was terminated: %q", out)
	}
}
