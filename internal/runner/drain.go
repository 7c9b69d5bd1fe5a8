package runner

import (
	"context"
	"strings"
	"time"
)

// Capture collects entries drained from a session's output queue.
type Capture struct {
	Stdout []string
	Stderr []string
}

func (c *Capture) add(e Entry) {
	if e.Stream == StreamStdout {
		c.Stdout = append(c.Stdout, e.Text)
	} else {
		c.Stderr = append(c.Stderr, e.Text)
	}
}

// Output joins the captured stdout lines.
func (c *Capture) Output() string { return strings.Join(c.Stdout, "\n") }

// ErrorText joins the captured stderr lines.
func (c *Capture) ErrorText() string { return strings.Join(c.Stderr, "\n") }

// Empty reports whether nothing at all was captured.
func (c *Capture) Empty() bool { return len(c.Stdout) == 0 && len(c.Stderr) == 0 }

// LastLine returns the last non-empty stdout line.
func (c *Capture) LastLine() string {
	for i := len(c.Stdout) - 1; i >= 0; i-- {
		if c.Stdout[i] != "" {
			return c.Stdout[i]
		}
	}
	return ""
}

// Window bounds a drain: wait Settle, then collect for at most Max.
type Window struct {
	Settle time.Duration
	Max    time.Duration
}

// drain collects output within w, returning early once the queue is empty
// and the process has exited, or when ctx is done.
func (s *Session) drain(ctx context.Context, w Window, c *Capture) {
	if w.Settle > 0 {
		settle := time.NewTimer(w.Settle)
		select {
		case <-settle.C:
		case <-ctx.Done():
			settle.Stop()
			s.drainNow(c)
			return
		}
	}
	if w.Max <= 0 {
		s.drainNow(c)
		return
	}

	deadline := time.NewTimer(w.Max)
	defer deadline.Stop()

	for {
		select {
		case e := <-s.output:
			c.add(e)
			continue
		default:
		}

		if s.proc.Exited() {
			return
		}

		select {
		case e := <-s.output:
			c.add(e)
		case <-s.proc.Done():
		case <-deadline.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// drainNow takes whatever is queued without waiting.
func (s *Session) drainNow(c *Capture) {
	for {
		select {
		case e := <-s.output:
			c.add(e)
		default:
			return
		}
	}
}

// flush waits, up to timeout, for both readers to reach EOF and then takes
// everything queued. Used once the process has exited.
func (s *Session) flush(timeout time.Duration, c *Capture) {
	limit := time.NewTimer(timeout)
	defer limit.Stop()

	for {
		select {
		case e := <-s.output:
			c.add(e)
		case <-s.readersDone:
			s.drainNow(c)
			return
		case <-limit.C:
			s.drainNow(c)
			return
		}
	}
}
