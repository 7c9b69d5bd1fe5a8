package runner

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// inputQueue is an unbounded FIFO of input lines ended by Close.
type inputQueue struct {
	mu     sync.Mutex
	items  []string
	closed bool
	ready  chan struct{}
}

func newInputQueue() *inputQueue {
	return &inputQueue{ready: make(chan struct{}, 1)}
}

// Push appends text. It reports false once the queue is closed.
func (q *inputQueue) Push(text string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, text)
	q.mu.Unlock()
	q.signal()
	return true
}

// Close enqueues the end-of-input sentinel.
func (q *inputQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *inputQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// pop returns the next item. done is true once the sentinel is reached.
func (q *inputQueue) pop() (text string, ok, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		text = q.items[0]
		q.items = q.items[1:]
		return text, true, false
	}
	return "", false, q.closed
}

// feedInput is the session's single writer to the process's stdin. It wakes
// every poll interval while idle so it can notice the process has exited.
func (s *Session) feedInput(poll time.Duration, log *zap.Logger) {
	stdin := s.proc.Stdin
	defer stdin.Close()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		for {
			text, ok, done := s.input.pop()
			if done {
				return
			}
			if !ok {
				break
			}
			if s.proc.Exited() {
				s.dropInput()
				continue
			}
			if _, err := io.WriteString(stdin, text+"\n"); err != nil {
				if s.isClosed() {
					return
				}
				if s.proc.Exited() {
					s.dropInput()
					return
				}
				log.Warn("input writer failed", zap.String("session", s.ID), zap.Error(err))
				s.push(Entry{Stream: StreamStderr, Text: fmt.Sprintf("input writer error: %v", err)})
				return
			}
		}

		select {
		case <-s.input.ready:
		case <-ticker.C:
			if s.proc.Exited() {
				return
			}
		case <-s.closed:
			return
		}
	}
}

// dropInput reports a line that lost the race with process exit.
func (s *Session) dropInput() {
	s.push(Entry{Stream: StreamStderr, Text: fmt.Sprintf("input not delivered: %v", ErrProcessExited)})
}
