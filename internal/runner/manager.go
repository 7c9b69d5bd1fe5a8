package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/storage"
	"github.com/michaelbrown/runbox/internal/toolchain"
	"github.com/michaelbrown/runbox/internal/workspace"
)

// Status is the lifecycle state reported to callers.
type Status string

const (
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusTerminated Status = "terminated"
)

// Result is what every session operation reports back.
type Result struct {
	Status          Status `json:"status"`
	SessionID       string `json:"session_id,omitempty"`
	Output          string `json:"output"`
	Error           string `json:"error"`
	WaitingForInput bool   `json:"waiting_for_input"`
}

// maxRecordedOutput bounds the transcript stored with each run.
const maxRecordedOutput = 4000

// Manager launches programs and drives their sessions through start,
// input, polling and termination.
type Manager struct {
	toolchains toolchain.Table
	workspaces workspace.Provisioner
	detector   InputDetector
	stopper    Stopper
	recorder   Recorder
	timing     Timing
	logger     *zap.Logger

	launcher *Launcher
	registry *Registry

	stopReaper chan struct{}
	reaperDone chan struct{}
	closeOnce  sync.Once
}

// NewManager creates a Manager and starts its background reaper.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		toolchains: toolchain.Default(),
		workspaces: workspace.NewTempProvisioner(""),
		detector:   NewKeywordDetector(),
		stopper:    DefaultStopper(),
		timing:     DefaultTiming(),
		logger:     zap.NewNop(),
		registry:   NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.launcher = &Launcher{
		CompileTimeout: m.timing.CompileTimeout,
		Stopper:        m.stopper,
		Logger:         m.logger,
	}

	if m.timing.ReapInterval > 0 {
		m.stopReaper = make(chan struct{})
		m.reaperDone = make(chan struct{})
		go m.reapLoop(m.timing.ReapInterval)
	}
	return m
}

// Languages lists the supported language names.
func (m *Manager) Languages() []string {
	return m.toolchains.Languages()
}

// Active returns the number of registered sessions.
func (m *Manager) Active() int {
	return m.registry.Len()
}

// Start compiles (if needed) and launches code, watches it briefly and
// reports what it printed. A program that finishes inside the window is
// reported completed and never registered.
func (m *Manager) Start(ctx context.Context, code, language string) (*Result, error) {
	tc, ok := m.toolchains.Lookup(language)
	if !ok {
		return nil, newError(ErrUnsupportedLanguage, fmt.Sprintf("unsupported language: %s", language), nil)
	}
	language = strings.ToLower(strings.TrimSpace(language))

	ws, err := m.workspaces.Create()
	if err != nil {
		return nil, newError(ErrInternal, "creating workspace", err)
	}
	release := func() {
		if err := ws.Release(); err != nil {
			m.logger.Warn("releasing workspace", zap.String("dir", ws.Dir), zap.Error(err))
		}
	}

	source, err := ws.WriteFile("code"+tc.Extension, code)
	if err != nil {
		release()
		return nil, newError(ErrInternal, "writing source file", err)
	}

	var artifact string
	if tc.Compiled() {
		artifact = ws.Path("program" + toolchain.ExecutableExtension())
		if err := m.launcher.Compile(ctx, tc, source, artifact, ws.Dir); err != nil {
			release()
			m.logger.Info("compile failed", zap.String("language", language), zap.Error(err))
			return nil, err
		}
	}

	proc, err := m.launcher.Launch(tc, source, artifact, ws.Dir)
	if err != nil {
		release()
		m.logger.Warn("launch failed", zap.String("language", language), zap.Error(err))
		return nil, err
	}

	s := newSession(uuid.New().String(), language, proc, m.detector, m.timing.OutputBuffer, ws)
	s.start(m.timing.FeedPoll, m.logger)
	m.logger.Info("session started",
		zap.String("session", s.ID), zap.String("language", language), zap.Int("pid", proc.PID()))

	s.mu.Lock()
	defer s.mu.Unlock()

	var c Capture
	s.drain(ctx, Window{Settle: m.timing.StartSettle, Max: m.timing.StartWindow}, &c)

	if proc.Exited() {
		s.flush(m.timing.FlushTimeout, &c)
		s.remember(&c)
		m.finalize(s, storage.ReasonCompleted)
		return &Result{
			Status: StatusCompleted,
			Output: c.Output(),
			Error:  c.ErrorText(),
		}, nil
	}

	s.remember(&c)
	m.registry.Add(s)

	return &Result{
		Status:          StatusRunning,
		SessionID:       s.ID,
		Output:          c.Output(),
		Error:           c.ErrorText(),
		WaitingForInput: s.waiting.Load() || c.Empty(),
	}, nil
}

// SubmitInput queues one line of input for the session and reports the
// output produced in response.
func (m *Manager) SubmitInput(ctx context.Context, id, text string) (*Result, error) {
	s, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	if s.proc.Exited() || !s.input.Push(text) {
		return m.alreadyExited(s), nil
	}
	s.waiting.Store(false)

	var c Capture
	s.drain(ctx, Window{Settle: m.timing.InputSettle, Max: m.timing.InputWindow}, &c)

	if s.proc.Exited() {
		return m.complete(s, &c), nil
	}
	s.remember(&c)

	waiting := false
	if last := c.LastLine(); last != "" {
		waiting = m.detector.AwaitingInput(last)
	}
	s.waiting.Store(waiting)

	return &Result{
		Status:          StatusRunning,
		SessionID:       s.ID,
		Output:          c.Output(),
		Error:           c.ErrorText(),
		WaitingForInput: waiting,
	}, nil
}

// Poll reports whatever output is already queued without waiting for more.
func (m *Manager) Poll(ctx context.Context, id string) (*Result, error) {
	s, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	var c Capture
	s.drainNow(&c)

	if s.proc.Exited() {
		return m.complete(s, &c), nil
	}
	s.remember(&c)

	return &Result{
		Status:          StatusRunning,
		SessionID:       s.ID,
		Output:          c.Output(),
		Error:           c.ErrorText(),
		WaitingForInput: s.waiting.Load(),
	}, nil
}

// Terminate stops the session's process, escalating to a kill after the
// grace period, and finalizes the session.
func (m *Manager) Terminate(ctx context.Context, id string) (*Result, error) {
	s, err := m.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	m.stop(s)
	var c Capture
	s.flush(m.timing.FlushTimeout, &c)
	s.remember(&c)
	m.finalize(s, storage.ReasonTerminated)

	return &Result{Status: StatusTerminated, SessionID: id}, nil
}

// Close stops the reaper and terminates every remaining session.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		if m.stopReaper != nil {
			close(m.stopReaper)
			<-m.reaperDone
		}

		var wg sync.WaitGroup
		for _, s := range m.registry.List() {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				s.mu.Lock()
				defer s.mu.Unlock()
				if s.finalized.Load() {
					return
				}
				m.stop(s)
				var c Capture
				s.flush(m.timing.FlushTimeout, &c)
				s.remember(&c)
				m.finalize(s, storage.ReasonTerminated)
			}(s)
		}
		wg.Wait()
	})
}

// acquire looks up id and returns the session locked. Finalized sessions
// are reported unknown.
func (m *Manager) acquire(id string) (*Session, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return nil, newError(ErrUnknownSession, "invalid session ID", nil)
	}
	s.mu.Lock()
	if s.finalized.Load() {
		s.mu.Unlock()
		return nil, newError(ErrUnknownSession, "invalid session ID", nil)
	}
	return s, nil
}

func (m *Manager) stop(s *Session) {
	forced, err := s.proc.Stop(m.timing.StopGrace)
	if err != nil {
		m.logger.Warn("stopping process", zap.String("session", s.ID), zap.Error(err))
	}
	if forced {
		m.logger.Info("process killed after grace period",
			zap.String("session", s.ID), zap.Duration("grace", m.timing.StopGrace))
	}
}

// complete finalizes a session whose process has exited, folding in the
// rest of its output. Callers hold s.mu.
func (m *Manager) complete(s *Session, c *Capture) *Result {
	s.flush(m.timing.FlushTimeout, c)
	s.remember(c)
	m.finalize(s, storage.ReasonCompleted)
	return &Result{
		Status: StatusCompleted,
		Output: c.Output(),
		Error:  c.ErrorText(),
	}
}

// alreadyExited handles input that arrived after the process ended. The
// session still completes normally; the race is reported as a note.
func (m *Manager) alreadyExited(s *Session) *Result {
	raced := newError(ErrProcessExited, "Process has already terminated", nil)
	m.logger.Info("input after exit", zap.String("session", s.ID), zap.Error(raced))

	var c Capture
	res := m.complete(s, &c)
	if res.Error == "" {
		res.Error = raced.Detail
	} else {
		res.Error += "\n" + raced.Detail
	}
	return res
}

// finalize tears a session down exactly once: it leaves the registry, its
// workers stop, its scratch files go away and its run is recorded.
// Callers hold s.mu.
func (m *Manager) finalize(s *Session, reason storage.Reason) {
	if !s.finalized.CompareAndSwap(false, true) {
		return
	}

	m.registry.Remove(s.ID, s)
	s.input.Close()
	close(s.closed)
	s.proc.closePipes()

	for _, r := range s.scratch {
		if err := r.Release(); err != nil {
			m.logger.Warn("releasing scratch", zap.String("session", s.ID), zap.Error(err))
		}
	}

	finished := time.Now()
	m.logger.Info("session finalized",
		zap.String("session", s.ID),
		zap.String("reason", string(reason)),
		zap.Int("exit_code", s.proc.ExitCode()),
		zap.NamedError("wait", s.proc.WaitErr()),
		zap.Duration("duration", finished.Sub(s.proc.Started)))

	if m.recorder == nil {
		return
	}
	run := &storage.Run{
		ID:         s.ID,
		Language:   s.Language,
		Reason:     reason,
		ExitCode:   s.proc.ExitCode(),
		Output:     truncate(s.stdoutLog.String(), maxRecordedOutput),
		Error:      truncate(s.stderrLog.String(), maxRecordedOutput),
		StartedAt:  s.proc.Started,
		FinishedAt: finished,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.recorder.RecordRun(ctx, run); err != nil {
		m.logger.Error("recording run", zap.String("session", s.ID), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (output truncated)"
}
