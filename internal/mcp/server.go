package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/frontdesk/internal/service"
)

// MCPServer wraps the mcp-go server with the front-desk tools and resources.
// Every call acts on a single company fixed at construction, the same way a
// logged-in staff member only ever sees their own company.
type MCPServer struct {
	visitors  *service.VisitorService
	companyID int64
	logger    *slog.Logger
	server    *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all tools and resources.
// The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(visitors *service.VisitorService, companyID int64, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}
	s := &MCPServer{
		visitors:  visitors,
		companyID: companyID,
		logger:    logger,
	}

	mcpServer := server.NewMCPServer(
		"frontdesk",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
		server.WithInstructions("Visitor desk for a single company. Use frontdesk_dashboard for an overview, "+
			"frontdesk_list_visitors to find visitors, and the mutating tools to pre-register or check out."),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode", "company_id", s.companyID)
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr, "company_id", s.companyID)
	return httpServer.Start(addr)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
