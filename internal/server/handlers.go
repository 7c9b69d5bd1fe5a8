package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/storage"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// writeEngineError maps an engine failure to a status code and error body.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, runner.ErrLaunchFailure), errors.Is(err, runner.ErrInternal):
		status = http.StatusInternalServerError
	case errors.Is(err, runner.ErrUnsupportedLanguage),
		errors.Is(err, runner.ErrToolchainMissing),
		errors.Is(err, runner.ErrCompileFailure),
		errors.Is(err, runner.ErrUnknownSession),
		errors.Is(err, runner.ErrProcessExited):
	default:
		status = http.StatusInternalServerError
	}

	resp := errorResponse{
		Error:   errorMessage(err),
		Kind:    runner.KindOf(err),
		Details: runner.DetailOf(err),
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("engine failure", zap.Error(err))
		if resp.Details == "" {
			resp.Details = err.Error()
		}
	}
	writeJSON(w, status, resp)
}

// errorMessage is the short, capitalized headline for err.
func errorMessage(err error) string {
	var e *runner.Error
	msg := err.Error()
	if errors.As(err, &e) {
		msg = e.Kind.Error()
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// --- Session handlers ---

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Language == "" {
		req.Language = "python"
	}

	res, err := s.engine.Start(r.Context(), req.Code, req.Language)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type inputRequest struct {
	SessionID string `json:"session_id"`
	Input     string `json:"input"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.engine.SubmitInput(r.Context(), req.SessionID, req.Input)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Poll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Terminate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(res.Status)})
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"languages": s.engine.Languages()})
}

// --- Run history handlers ---

func (s *Server) historyEnabled(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "run history is disabled")
		return false
	}
	return true
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	opts := storage.RunListOptions{}

	if reason := r.URL.Query().Get("reason"); reason != "" {
		opts.Reason = storage.Reason(reason)
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	runs, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if runs == nil {
		runs = []storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	if err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	if !s.historyEnabled(w) {
		return
	}
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeStoreError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(storage.ExportMarkdown(run)))
	case "json":
		data, err := storage.ExportJSON(run)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		w.Header().Set("Content-Type", "application/json")
		writeError(w, http.StatusBadRequest, "unknown format (use markdown or json)")
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		writeError(w, http.StatusNotFound, "run not found")
	case strings.Contains(msg, "ambiguous"):
		writeError(w, http.StatusBadRequest, msg)
	default:
		writeError(w, http.StatusInternalServerError, msg)
	}
}
