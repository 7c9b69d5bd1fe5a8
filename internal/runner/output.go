package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

// maxLine caps a single output entry; longer lines are split.
const maxLine = 64 << 10

// readStream pushes each line of r onto the session's output queue until EOF.
// Only stdout lines feed the waiting-for-input heuristic.
func (s *Session) readStream(r io.ReadCloser, stream Stream, log *zap.Logger) {
	defer s.readers.Done()
	defer r.Close()

	br := bufio.NewReaderSize(r, maxLine)
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			text := strings.TrimRight(string(chunk), " \t\r\n")
			if !s.push(Entry{Stream: stream, Text: text}) {
				return
			}
			if stream == StreamStdout && s.detector.AwaitingInput(text) {
				s.waiting.Store(true)
			}
		}
		if err == nil || errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || s.isClosed() {
			return
		}
		log.Warn("output reader failed",
			zap.String("session", s.ID), zap.String("stream", string(stream)), zap.Error(err))
		s.push(Entry{Stream: StreamStderr, Text: fmt.Sprintf("%s reader error: %v", stream, err)})
		return
	}
}
