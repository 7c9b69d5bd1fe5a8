package runner

import (
	"time"

	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/storage"
)

func (m *Manager) reapLoop(interval time.Duration) {
	defer close(m.reaperDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			m.Reap()
		}
	}
}

// Reap finalizes every registered session whose process has exited and
// returns how many it cleaned up. Sessions busy with a caller are skipped;
// that caller will see the exit itself.
func (m *Manager) Reap() int {
	n := 0
	for _, s := range m.registry.List() {
		if !s.proc.Exited() {
			continue
		}
		if !s.mu.TryLock() {
			continue
		}
		if !s.finalized.Load() {
			var c Capture
			s.flush(m.timing.FlushTimeout, &c)
			s.remember(&c)
			m.finalize(s, storage.ReasonReaped)
			n++
		}
		s.mu.Unlock()
	}
	if n > 0 {
		m.logger.Info("reaped finished sessions", zap.Int("count", n))
	}
	return n
}
