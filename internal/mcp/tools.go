package mcp

import (
	"context"

	"github.com/claude/repcam/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List live counting sessions, oldest first, with their rep count, stage and whether counting is running."),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Get one session's current rep count, stage, smoothed knee angle and frame statistics."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session id (UUID)")),
)

var toolControlSession = mcp.NewTool("control_session",
	mcp.WithDescription("Start, stop or reset counting for a session. RESET zeroes the count and stops counting."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Session id (UUID)")),
	mcp.WithString("command", mcp.Required(), mcp.Description("Control command"), mcp.Enum("START", "STOP", "RESET")),
)

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := h.ds.ListSessions(ctx)
	if err != nil {
		h.log.Error("mcp list_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{"sessions": infos})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	info, err := h.ds.GetSession(ctx, id)
	if err != nil {
		return mcp.NewToolResultError("lookup failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(info)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) controlSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	raw, err := req.RequireString("command")
	if err != nil {
		return mcp.NewToolResultError("command parameter is required"), nil
	}
	cmd, ok := session.ParseCommand(raw)
	if !ok {
		return mcp.NewToolResultError("command must be START, STOP or RESET"), nil
	}

	u, err := h.ds.ControlSession(ctx, id, cmd)
	if err != nil {
		h.log.Warn("mcp control_session", "session", id, "command", cmd, "error", err)
		return mcp.NewToolResultError("command failed: " + err.Error()), nil
	}
	h.log.Info("mcp control_session", "session", id, "command", cmd, "count", u.Count)

	result, err := mcp.NewToolResultJSON(u)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
