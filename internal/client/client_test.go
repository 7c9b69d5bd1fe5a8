package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/server"
	"github.com/michaelbrown/runbox/internal/storage"
	"github.com/michaelbrown/runbox/internal/storage/sqlite"
	"github.com/michaelbrown/runbox/internal/toolchain"
	"github.com/michaelbrown/runbox/internal/workspace"
)

func newStack(t *testing.T) (*Client, storage.Store) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a unix shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	timing := runner.DefaultTiming()
	timing.StartSettle = 100 * time.Millisecond
	timing.InputSettle = 100 * time.Millisecond
	timing.InputWindow = 500 * time.Millisecond
	timing.StopGrace = 500 * time.Millisecond
	timing.ReapInterval = 0

	m := runner.NewManager(
		runner.WithToolchains(toolchain.Table{
			"sh": {Extension: ".sh", Run: []string{"sh", toolchain.SourcePlaceholder}},
		}),
		runner.WithProvisioner(workspace.NewTempProvisioner(t.TempDir())),
		runner.WithTiming(timing),
		runner.WithRecorder(store),
	)
	t.Cleanup(m.Close)

	ts := httptest.NewServer(server.New(m, store, nil, server.Options{}).Handler())
	t.Cleanup(ts.Close)
	return New(ts.URL), store
}

func TestRoundTrip(t *testing.T) {
	c, _ := newStack(t)
	ctx := context.Background()

	res, err := c.Start(ctx, "echo \"Enter a word:\"\nread w\necho \"you said $w\"", "sh")
	require.NoError(t, err)
	require.Equal(t, runner.StatusRunning, res.Status)
	assert.Equal(t, "Enter a word:", res.Output)
	assert.True(t, res.WaitingForInput)

	res, err = c.SubmitInput(ctx, res.SessionID, "bird")
	require.NoError(t, err)
	assert.Equal(t, runner.StatusCompleted, res.Status)
	assert.Equal(t, "you said bird", res.Output)

	runs, err := c.ListRuns(ctx, storage.RunListOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.ReasonCompleted, runs[0].Reason)

	run, err := c.GetRun(ctx, runs[0].ID[:8])
	require.NoError(t, err)
	assert.Equal(t, runs[0].ID, run.ID)
}

func TestTerminateRemote(t *testing.T) {
	c, _ := newStack(t)
	ctx := context.Background()

	res, err := c.Start(ctx, "sleep 30", "sh")
	require.NoError(t, err)
	require.Equal(t, runner.StatusRunning, res.Status)

	res, err = c.Poll(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusRunning, res.Status)

	res, err = c.Terminate(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusTerminated, res.Status)

	_, err = c.Poll(ctx, res.SessionID)
	assert.True(t, errors.Is(err, runner.ErrUnknownSession), "err = %v", err)
}

func TestRemoteErrorKinds(t *testing.T) {
	c, _ := newStack(t)
	ctx := context.Background()

	_, err := c.Start(ctx, "x", "brainfuck")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, errors.Is(err, runner.ErrUnsupportedLanguage))

	langs, err := c.Languages(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sh"}, langs)
}

func TestAPIErrorPlainBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := New(ts.URL).Poll(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream down", apiErr.Message)
	assert.Nil(t, apiErr.Unwrap())
}
