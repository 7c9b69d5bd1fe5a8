package runner

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Stream tags which output stream an entry came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Entry is one line of process output.
type Entry struct {
	Stream Stream
	Text   string
}

// Releaser is a scratch resource owned by a session.
type Releaser interface {
	Release() error
}

// maxTranscript caps how much of each stream a session remembers for history.
const maxTranscript = 64 << 10

// Session is one in-flight or just-finished execution.
type Session struct {
	ID       string
	Language string

	proc     *Process
	input    *inputQueue
	output   chan Entry
	detector InputDetector
	scratch  []Releaser

	// waiting is best-effort display state; lifecycle decisions always
	// consult proc.Exited() instead.
	waiting atomic.Bool

	// mu serializes lifecycle operations on this session.
	mu        sync.Mutex
	finalized atomic.Bool
	closed    chan struct{} // closed by finalize; stops workers

	readers     sync.WaitGroup
	readersDone chan struct{}

	stdoutLog strings.Builder
	stderrLog strings.Builder
}

func newSession(id, language string, proc *Process, detector InputDetector, buffer int, scratch ...Releaser) *Session {
	return &Session{
		ID:          id,
		Language:    language,
		proc:        proc,
		input:       newInputQueue(),
		output:      make(chan Entry, buffer),
		detector:    detector,
		scratch:     scratch,
		closed:      make(chan struct{}),
		readersDone: make(chan struct{}),
	}
}

// start launches the two output readers and the input feeder.
func (s *Session) start(feedPoll time.Duration, log *zap.Logger) {
	s.readers.Add(2)
	go s.readStream(s.proc.Stdout, StreamStdout, log)
	go s.readStream(s.proc.Stderr, StreamStderr, log)
	go func() {
		s.readers.Wait()
		close(s.readersDone)
	}()

	go s.feedInput(feedPoll, log)
}

// push queues e unless the session has been finalized.
func (s *Session) push(e Entry) bool {
	select {
	case s.output <- e:
		return true
	case <-s.closed:
		return false
	}
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// remember appends captured text to the session transcript. Callers hold mu.
func (s *Session) remember(c *Capture) {
	appendCapped(&s.stdoutLog, c.Stdout)
	appendCapped(&s.stderrLog, c.Stderr)
}

func appendCapped(b *strings.Builder, lines []string) {
	for _, line := range lines {
		if b.Len() >= maxTranscript {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
}
