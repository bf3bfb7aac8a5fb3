package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer serves the operation catalog as MCP tools over stdio.
type MCPServer struct {
	provider   *ConnectionProvider
	dispatcher *Dispatcher
	mcp        *server.MCPServer
	logger     *slog.Logger
}

// NewMCPServer wires the connection provider, dispatcher and MCP tool
// registry for cfg. The database is not contacted until the first tool call.
func NewMCPServer(cfg *Config, logger *slog.Logger) *MCPServer {
	provider := NewConnectionProvider(cfg.Adapter, cfg.DSN, logger)
	dispatcher := NewDispatcher(provider, cfg.Adapter, cfg.DatabaseName, cfg.DispatchOptions(), logger)
	return &MCPServer{
		provider:   provider,
		dispatcher: dispatcher,
		mcp:        newToolServer(dispatcher),
		logger:     logger,
	}
}

// newToolServer registers one MCP tool per catalog operation.
func newToolServer(d *Dispatcher) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		ServerVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, op := range d.Operations() {
		s.AddTool(toolFor(op), toolHandler(d, op.Name))
	}
	return s
}

func toolFor(op *Operation) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(op.Description)}
	for _, arg := range op.Args {
		props := []mcp.PropertyOption{mcp.Description(arg.Description)}
		if arg.Required {
			props = append(props, mcp.Required())
		}
		opts = append(opts, mcp.WithString(arg.Name, props...))
	}
	return mcp.NewTool(op.Name, opts...)
}

// toolHandler adapts an envelope to a tool result. Failures are reported in
// the result with isError set, not as protocol errors.
func toolHandler(d *Dispatcher, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := d.Dispatch(ctx, Request{Name: name, Arguments: request.GetArguments()})
		if env.IsError {
			return mcp.NewToolResultError(env.Text), nil
		}
		return mcp.NewToolResultText(env.Text), nil
	}
}

// Run serves MCP messages from in to out until ctx is cancelled or in is
// exhausted.
func (s *MCPServer) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// Close releases all resources
func (s *MCPServer) Close() error {
	return s.provider.Close()
}
