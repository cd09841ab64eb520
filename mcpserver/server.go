package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/coderoom/language"
	"github.com/isdmx/coderoom/pipeline"
	"github.com/isdmx/coderoom/workspace"
)

// ToolExecuteCode is the name of the execution tool
const ToolExecuteCode = "execute_code"

const (
	serverName    = "coderoom-executor"
	serverVersion = "1.0.0"
)

// Runner executes pipeline requests
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	logger    *zap.Logger
	runner    Runner
	mcpServer *server.MCPServer
}

// New creates a new MCPServer advertising the languages of registry
func New(logger *zap.Logger, registry *language.Registry, runner Runner) *MCPServer {
	s := &MCPServer{
		logger: logger,
		runner: runner,
	}

	s.mcpServer = server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	s.registerExecuteCodeTool(registry.Names())

	return s
}

func (s *MCPServer) registerExecuteCodeTool(languages []string) {
	tool := mcp.NewTool(ToolExecuteCode,
		mcp.WithDescription("Validate untrusted code and run it in a sandbox, or resolve its npm dependencies in preview mode"),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Runtime language"),
			mcp.Enum(languages...),
		),
		mcp.WithString("code",
			mcp.Description("Inline source; replaces the entry file when files are given"),
		),
		mcp.WithString("entry",
			mcp.Description("Entry file name; defaults to the language's entry file"),
		),
		mcp.WithObject("files",
			mcp.Description("Map of file name to file content"),
		),
		mcp.WithString("files_tar",
			mcp.Description("Base64-encoded tar.gz of additional files"),
		),
		mcp.WithString("mode",
			mcp.Description("execute (default) or preview"),
			mcp.Enum("execute", "preview"),
		),
	)

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// handleExecuteCode maps tool arguments onto a pipeline request
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	files, err := collectFiles(request)
	if err != nil {
		return nil, err
	}

	req := pipeline.Request{
		Language: lang,
		Code:     request.GetString("code", ""),
		Entry:    request.GetString("entry", ""),
		Files:    files,
		Mode:     request.GetString("mode", ""),
	}

	s.logger.Info("code execution requested",
		zap.String("language", lang),
		zap.Int("files", len(files)),
		zap.String("mode", req.Mode))

	resp, err := s.runner.Run(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}

	var payload any = resp.Execution
	if resp.Preview != nil {
		payload = resp.Preview
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// collectFiles merges files_tar with the files object; the object wins on conflicts
func collectFiles(request mcp.CallToolRequest) (map[string]string, error) {
	files := make(map[string]string)

	if encoded := request.GetString("files_tar", ""); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to decode files_tar: %w", err)
		}
		archived, err := workspace.FilesFromArchive(data)
		if err != nil {
			return nil, fmt.Errorf("failed to read files_tar: %w", err)
		}
		for name, content := range archived {
			files[name] = content
		}
	}

	if raw, ok := request.GetArguments()["files"]; ok && raw != nil {
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("files must be an object, got %T", raw)
		}
		for name, v := range obj {
			content, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("content of %s must be a string, got %T", name, v)
			}
			files[name] = content
		}
	}

	if len(files) == 0 {
		return nil, nil
	}
	return files, nil
}

func describeError(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())

	var pErr *pipeline.Error
	if errors.As(err, &pErr) {
		for _, issue := range pErr.Issues {
			b.WriteString("\n- ")
			b.WriteString(issue)
		}
	}
	return b.String()
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// HTTPHandler returns the streamable HTTP transport for mounting into a router
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
