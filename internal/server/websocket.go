package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/runner"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS policy is enforced on the HTTP routes
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type            string `json:"type"`
	SessionID       string `json:"session_id,omitempty"`
	Output          string `json:"output,omitempty"`
	Error           string `json:"error,omitempty"`
	Kind            string `json:"kind,omitempty"`
	WaitingForInput bool   `json:"waiting_for_input"`
}

// handleWebSocket streams a session: the client sends input or terminate
// messages, the server pushes every non-empty poll until the session ends.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the session exists before upgrading
	first, err := s.engine.Poll(r.Context(), id)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		s.writeEngineError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if !s.wsSend(conn, id, first, true) {
		return
	}

	// Reader goroutine; all writes stay on this goroutine.
	incoming := make(chan wsIncoming)
	readDone := make(chan struct{})
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(readDone)
		for {
			var msg wsIncoming
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("websocket read ended", zap.String("session", id), zap.Error(err))
				}
				return
			}
			select {
			case incoming <- msg:
			case <-stop:
				return
			}
		}
	}()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-readDone:
			return

		case msg := <-incoming:
			switch msg.Type {
			case "input":
				res, err := s.engine.SubmitInput(ctx, id, msg.Content)
				if err != nil {
					wsWriteError(conn, s.logger, err)
					return
				}
				if !s.wsSend(conn, id, res, true) {
					return
				}
			case "terminate":
				res, err := s.engine.Terminate(ctx, id)
				if err != nil {
					wsWriteError(conn, s.logger, err)
					return
				}
				wsWriteJSON(conn, s.logger, wsOutgoing{Type: string(res.Status), SessionID: id})
				return
			default:
				wsWriteJSON(conn, s.logger, wsOutgoing{Type: "error", Error: "invalid message"})
			}

		case <-ticker.C:
			res, err := s.engine.Poll(ctx, id)
			if err != nil {
				wsWriteError(conn, s.logger, err)
				return
			}
			if !s.wsSend(conn, id, res, false) {
				return
			}
		}
	}
}

// wsSend pushes res to the client. Running snapshots with nothing new are
// skipped unless always is set. It reports whether the stream continues.
func (s *Server) wsSend(conn *websocket.Conn, id string, res *runner.Result, always bool) bool {
	if res.Status != runner.StatusRunning {
		wsWriteJSON(conn, s.logger, wsOutgoing{
			Type:      string(res.Status),
			SessionID: id,
			Output:    res.Output,
			Error:     res.Error,
		})
		return false
	}
	if !always && res.Output == "" && res.Error == "" {
		return true
	}
	return wsWriteJSON(conn, s.logger, wsOutgoing{
		Type:            "output",
		SessionID:       id,
		Output:          res.Output,
		Error:           res.Error,
		WaitingForInput: res.WaitingForInput,
	})
}

func wsWriteError(conn *websocket.Conn, logger *zap.Logger, err error) {
	wsWriteJSON(conn, logger, wsOutgoing{
		Type:  "error",
		Error: errorMessage(err),
		Kind:  runner.KindOf(err),
	})
}

func wsWriteJSON(conn *websocket.Conn, logger *zap.Logger, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Warn("websocket marshal error", zap.Error(err))
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Debug("websocket write error", zap.Error(err))
		return false
	}
	return true
}
