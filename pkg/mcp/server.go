// Package mcp assembles the annotation server's MCP surface: the agentation
// tool set and the streamable HTTP transport it is served over at /mcp.
package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/agentation/agentation-server/pkg/mcp/tools"
	"github.com/agentation/agentation-server/pkg/services"
)

// Deps carries everything the agentation tool set needs. DefaultWait bounds
// how long wait_for_action blocks before returning a timeout result.
type Deps struct {
	Version           string
	DB                tools.DBPinger
	SessionService    services.SessionService
	AnnotationService services.AnnotationService
	Broker            *services.ActionBroker
	DefaultWait       time.Duration
}

// Server owns the MCP tool registry for the annotation server.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer builds the MCP server with the full agentation tool set
// registered: health, session and pending-annotation queries, and the
// annotation action tools.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		"agentation",
		deps.Version,
		server.WithToolCapabilities(true),
	)

	tools.RegisterHealthTool(mcpServer, &tools.HealthToolDeps{
		Version: deps.Version,
		DB:      deps.DB,
	})
	tools.RegisterSessionTools(mcpServer, &tools.SessionToolDeps{
		SessionService:    deps.SessionService,
		AnnotationService: deps.AnnotationService,
		Logger:            logger,
	})
	tools.RegisterAnnotationTools(mcpServer, &tools.AnnotationToolDeps{
		AnnotationService: deps.AnnotationService,
		Broker:            deps.Broker,
		DefaultWait:       deps.DefaultWait,
		Logger:            logger,
	})

	return &Server{mcp: mcpServer, logger: logger}
}

// MCP returns the underlying MCPServer. Tests use it to drive JSON-RPC
// messages without the HTTP transport.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Handler returns the streamable HTTP transport for mounting at /mcp. The
// mux handles routing, so no endpoint path is configured here.
func (s *Server) Handler() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}
