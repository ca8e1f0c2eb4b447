package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("RepCam", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("RepCam squat counter. List live counting sessions, read their rep count and stage, and start, stop or reset them."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolListSessions, Handler: h.listSessions},
		server.ServerTool{Tool: toolGetSession, Handler: h.getSession},
		server.ServerTool{Tool: toolControlSession, Handler: h.controlSession},
	)

	s.AddResources(
		server.ServerResource{Resource: resSessions, Handler: h.sessionsResource},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resSessions = mcp.NewResource(
	"repcam://sessions",
	"Live Sessions",
	mcp.WithResourceDescription("All live counting sessions with their current count, stage and running flag"),
	mcp.WithMIMEType("application/json"),
)
