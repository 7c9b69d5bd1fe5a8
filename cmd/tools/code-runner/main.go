package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/michaelbrown/runbox/internal/config"
	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/workspace"
)

func main() {
	cfg, err := config.Load(os.Getenv("RUNBOX_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	table, err := cfg.Toolchains()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading toolchains: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol; logs go to stderr only.
	logger, err := cfg.Log.Logger()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()

	m := runner.NewManager(
		runner.WithToolchains(table),
		runner.WithTiming(cfg.Execution.Timing()),
		runner.WithProvisioner(workspace.NewTempProvisioner(cfg.Execution.WorkspaceRoot)),
		runner.WithLogger(logger),
	)
	defer m.Close()

	if err := server.ServeStdio(newServer(m)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

// codeTools exposes a session engine as MCP tools.
type codeTools struct {
	engine *runner.Manager
}

func newServer(m *runner.Manager) *server.MCPServer {
	s := server.NewMCPServer("runbox-code-runner", "0.1.0")
	t := &codeTools{engine: m}

	s.AddTool(mcp.Tool{
		Name: "code_start",
		Description: fmt.Sprintf("Start a program and return its first output. Supported languages: %s. "+
			"If the result status is \"running\", use code_input, code_status and code_terminate with the returned session_id.",
			strings.Join(m.Languages(), ", ")),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Programming language, e.g. " + strings.Join(m.Languages(), ", "),
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to execute",
				},
			},
			Required: []string{"language", "code"},
		},
	}, t.handleStart)

	s.AddTool(mcp.Tool{
		Name:        "code_input",
		Description: "Send one line of input to a running program and return what it printed in response.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session id returned by code_start",
				},
				"input": map[string]any{
					"type":        "string",
					"description": "Line of text to send (a newline is appended)",
				},
			},
			Required: []string{"session_id", "input"},
		},
	}, t.handleInput)

	s.AddTool(mcp.Tool{
		Name:        "code_status",
		Description: "Return any output a running program produced since the last call.",
		InputSchema: sessionSchema(),
	}, t.handleStatus)

	s.AddTool(mcp.Tool{
		Name:        "code_terminate",
		Description: "Stop a running program.",
		InputSchema: sessionSchema(),
	}, t.handleTerminate)

	return s
}

func sessionSchema() mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"session_id": map[string]any{
				"type":        "string",
				"description": "Session id returned by code_start",
			},
		},
		Required: []string{"session_id"},
	}
}

func (t *codeTools) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	language, _ := args["language"].(string)
	code, _ := args["code"].(string)
	if language == "" || code == "" {
		return errResult("error: 'language' and 'code' are required"), nil
	}

	res, err := t.engine.Start(ctx, code, language)
	return toolResult(res, err), nil
}

func (t *codeTools) handleInput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	id, _ := args["session_id"].(string)
	input, _ := args["input"].(string)
	if id == "" {
		return errResult("error: 'session_id' is required"), nil
	}

	res, err := t.engine.SubmitInput(ctx, id, input)
	return toolResult(res, err), nil
}

func (t *codeTools) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := sessionArg(request)
	if bad != nil {
		return bad, nil
	}
	res, err := t.engine.Poll(ctx, id)
	return toolResult(res, err), nil
}

func (t *codeTools) handleTerminate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, bad := sessionArg(request)
	if bad != nil {
		return bad, nil
	}
	res, err := t.engine.Terminate(ctx, id)
	return toolResult(res, err), nil
}

func sessionArg(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	args, _ := request.Params.Arguments.(map[string]any)
	id, _ := args["session_id"].(string)
	if id == "" {
		return "", errResult("error: 'session_id' is required")
	}
	return id, nil
}

// toolResult renders a session result as indented JSON, or err as a tool error.
func toolResult(res *runner.Result, err error) *mcp.CallToolResult {
	if err != nil {
		text := fmt.Sprintf("error: %v", err)
		if detail := runner.DetailOf(err); detail != "" {
			text += "\n" + detail
		}
		return errResult(truncate(text))
	}

	res.Output = truncate(res.Output)
	res.Error = truncate(res.Error)
	data, mErr := json.MarshalIndent(res, "", "  ")
	if mErr != nil {
		return errResult(fmt.Sprintf("error: encoding result: %v", mErr))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(data)}},
	}
}

func truncate(text string) string {
	if len(text) > 4000 {
		return text[:4000] + "\n... (output truncated)"
	}
	return text
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
