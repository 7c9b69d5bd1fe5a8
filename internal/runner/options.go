package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/storage"
	"github.com/michaelbrown/runbox/internal/toolchain"
	"github.com/michaelbrown/runbox/internal/workspace"
)

// Timing holds the observation windows and limits used by a Manager.
type Timing struct {
	CompileTimeout time.Duration
	StartSettle    time.Duration
	StartWindow    time.Duration
	InputSettle    time.Duration
	InputWindow    time.Duration
	StopGrace      time.Duration
	ReapInterval   time.Duration // 0 disables the background reaper
	FeedPoll       time.Duration
	FlushTimeout   time.Duration
	OutputBuffer   int
}

// DefaultTiming returns the stock windows.
func DefaultTiming() Timing {
	return Timing{
		CompileTimeout: 10 * time.Second,
		StartSettle:    300 * time.Millisecond,
		StartWindow:    500 * time.Millisecond,
		InputSettle:    300 * time.Millisecond,
		InputWindow:    time.Second,
		StopGrace:      2 * time.Second,
		ReapInterval:   60 * time.Second,
		FeedPoll:       100 * time.Millisecond,
		FlushTimeout:   500 * time.Millisecond,
		OutputBuffer:   1024,
	}
}

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *storage.Run) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithToolchains replaces the language table.
func WithToolchains(t toolchain.Table) Option {
	return func(m *Manager) { m.toolchains = t }
}

// WithProvisioner sets where per-execution scratch directories come from.
func WithProvisioner(p workspace.Provisioner) Option {
	return func(m *Manager) { m.workspaces = p }
}

// WithTiming overrides the observation windows.
func WithTiming(t Timing) Option {
	return func(m *Manager) { m.timing = t }
}

// WithDetector overrides the waiting-for-input heuristic.
func WithDetector(d InputDetector) Option {
	return func(m *Manager) { m.detector = d }
}

// WithRecorder records every finalized run.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithStopper overrides how processes are stopped.
func WithStopper(s Stopper) Option {
	return func(m *Manager) { m.stopper = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}
