// Package client talks to a runbox server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/storage"
)

// Client is a typed client for the runbox API. Its session methods mirror
// runner.Manager so callers can drive a local or remote engine alike.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://localhost:5000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Start and input requests block for the server's observation window.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Kind       string `json:"kind"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap maps the server's error kind back to the engine's sentinel so
// errors.Is works the same for local and remote sessions.
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case "unsupported_language":
		return runner.ErrUnsupportedLanguage
	case "toolchain_missing":
		return runner.ErrToolchainMissing
	case "compile_failure":
		return runner.ErrCompileFailure
	case "launch_failure":
		return runner.ErrLaunchFailure
	case "unknown_session":
		return runner.ErrUnknownSession
	case "process_exited":
		return runner.ErrProcessExited
	case "internal":
		return runner.ErrInternal
	}
	return nil
}

// Start submits code for execution.
func (c *Client) Start(ctx context.Context, code, language string) (*runner.Result, error) {
	var res runner.Result
	body := map[string]string{"code": code, "language": language}
	if err := c.do(ctx, http.MethodPost, "/api/execute", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitInput sends one line of input to a running session.
func (c *Client) SubmitInput(ctx context.Context, id, text string) (*runner.Result, error) {
	var res runner.Result
	body := map[string]string{"session_id": id, "input": text}
	if err := c.do(ctx, http.MethodPost, "/api/input", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Poll fetches whatever output a session has produced since the last call.
func (c *Client) Poll(ctx context.Context, id string) (*runner.Result, error) {
	var res runner.Result
	if err := c.do(ctx, http.MethodGet, "/api/status/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Terminate stops a session.
func (c *Client) Terminate(ctx context.Context, id string) (*runner.Result, error) {
	var res runner.Result
	if err := c.do(ctx, http.MethodPost, "/api/terminate/"+url.PathEscape(id), nil, &res); err != nil {
		return nil, err
	}
	res.SessionID = id
	return &res, nil
}

// Languages lists the languages the server accepts.
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	var res struct {
		Languages []string `json:"languages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/languages", nil, &res); err != nil {
		return nil, err
	}
	return res.Languages, nil
}

// ListRuns returns finished runs, newest first.
func (c *Client) ListRuns(ctx context.Context, opts storage.RunListOptions) ([]storage.Run, error) {
	q := url.Values{}
	if opts.Reason != "" {
		q.Set("reason", string(opts.Reason))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var runs []storage.Run
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun fetches one finished run by id or unique prefix.
func (c *Client) GetRun(ctx context.Context, id string) (*storage.Run, error) {
	var run storage.Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
