// Package mcp exposes every entity's CRUD operations as MCP tools, so agent
// clients can drive the same transactional service the HTTP adapter uses.
package mcp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/api-maker/internal/model"
	"github.com/faucetdb/api-maker/internal/operation"
)

// Executor runs one operation in one transaction. txservice.Service is the
// production implementation.
type Executor interface {
	Execute(ctx context.Context, op operation.Operation) ([]map[string]any, error)
}

// MCPServer wraps the mcp-go server with one read/create/update/delete tool
// per entity, plus resources describing the model itself.
type MCPServer struct {
	exec   Executor
	model  *model.Model
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all entity tools and
// model resources. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(exec Executor, m *model.Model, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MCPServer{
		exec:   exec,
		model:  m,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"API Maker",
		"0.1.0",
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001"). This is suitable for remote MCP clients.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server,
		server.WithHeartbeatInterval(30*time.Second),
	)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

// HTTPHandler returns an http.Handler implementing the Streamable HTTP MCP
// transport, suitable for mounting on an existing router so the MCP endpoint
// runs alongside the REST API on the same port.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.server,
		server.WithHeartbeatInterval(30*time.Second),
	)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
