package main

import (
	"context"
	"encoding/json"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/toolchain"
	"github.com/michaelbrown/runbox/internal/workspace"
)

func newTools(t *testing.T) *codeTools {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts need a unix shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

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
	)
	t.Cleanup(m.Close)
	return &codeTools{engine: m}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content parts = %d, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func resultOf(t *testing.T, res *mcp.CallToolResult) runner.Result {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", textOf(t, res))
	}
	var out runner.Result
	if err := json.Unmarshal([]byte(textOf(t, res)), &out); err != nil {
		t.Fatalf("decoding tool result: %v", err)
	}
	return out
}

func TestCodeToolsConversation(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	res, _ := tools.handleStart(ctx, call(map[string]any{
		"language": "sh",
		"code":     "echo \"Your name?\"\nread n\necho \"hi $n\"",
	}))
	started := resultOf(t, res)
	if started.Status != runner.StatusRunning || started.Output != "Your name?" || !started.WaitingForInput {
		t.Fatalf("start = %+v", started)
	}

	res, _ = tools.handleStatus(ctx, call(map[string]any{"session_id": started.SessionID}))
	if got := resultOf(t, res); got.Status != runner.StatusRunning {
		t.Errorf("status = %+v", got)
	}

	res, _ = tools.handleInput(ctx, call(map[string]any{"session_id": started.SessionID, "input": "Lin"}))
	done := resultOf(t, res)
	if done.Status != runner.StatusCompleted || done.Output != "hi Lin" {
		t.Errorf("after input = %+v", done)
	}
}

func TestCodeToolsTerminate(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	res, _ := tools.handleStart(ctx, call(map[string]any{"language": "sh", "code": "sleep 30"}))
	started := resultOf(t, res)

	res, _ = tools.handleTerminate(ctx, call(map[string]any{"session_id": started.SessionID}))
	if got := resultOf(t, res); got.Status != runner.StatusTerminated {
		t.Errorf("terminate = %+v", got)
	}

	res, _ = tools.handleStatus(ctx, call(map[string]any{"session_id": started.SessionID}))
	if !res.IsError || !strings.Contains(textOf(t, res), "invalid session ID") {
		t.Errorf("status after terminate = %q", textOf(t, res))
	}
}

func TestCodeToolsBadArguments(t *testing.T) {
	tools := newTools(t)
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args map[string]any
		want string
	}{
		{"start missing code", tools.handleStart, map[string]any{"language": "sh"}, "'language' and 'code' are required"},
		{"start unsupported", tools.handleStart, map[string]any{"language": "cobol", "code": "x"}, "unsupported language"},
		{"input missing id", tools.handleInput, map[string]any{"input": "x"}, "'session_id' is required"},
		{"status missing id", tools.handleStatus, map[string]any{}, "'session_id' is required"},
		{"terminate unknown", tools.handleTerminate, map[string]any{"session_id": "nope"}, "invalid session ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.fn(ctx, call(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if !res.IsError {
				t.Fatal("expected tool error")
			}
			if got := textOf(t, res); !strings.Contains(got, tt.want) {
				t.Errorf("text = %q, want substring %q", got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 4100)
	if got := truncate(long); !strings.HasSuffix(got, "(output truncated)") || len(got) > 4100 {
		t.Errorf("truncate produced %d bytes", len(got))
	}
}
