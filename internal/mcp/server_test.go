package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/repcam/internal/counter"
	"github.com/claude/repcam/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

func newTestHandlers(t *testing.T) (*handlers, *session.Manager) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := session.NewManager(session.Options{Counter: counter.DefaultConfig(), Log: log})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &handlers{ds: NewManagerSource(m), log: log}, m
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content type %T", res.Content[0])
	return ""
}

// TestListSessionsTool verifies live sessions are reported.
func TestListSessionsTool(t *testing.T) {
	h, m := newTestHandlers(t)
	ctx := context.Background()
	a, _ := m.Create(ctx)
	m.Create(ctx)

	res, err := h.listSessions(ctx, callTool("list_sessions", nil))
	if err != nil || res.IsError {
		t.Fatalf("list_sessions failed: %v %+v", err, res)
	}
	var body struct {
		Sessions []session.Info `json:"sessions"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 2 || body.Sessions[0].ID != a.ID().String() {
		t.Errorf("sessions = %+v", body.Sessions)
	}
}

// TestControlSessionTool drives START then RESET through the tool and checks
// the session state follows.
func TestControlSessionTool(t *testing.T) {
	h, m := newTestHandlers(t)
	ctx := context.Background()
	s, _ := m.Create(ctx)
	id := s.ID().String()

	res, _ := h.controlSession(ctx, callTool("control_session", map[string]any{"id": id, "command": "start"}))
	if res.IsError {
		t.Fatalf("START failed: %s", resultText(t, res))
	}
	if !s.Snapshot().Running {
		t.Error("session not running after START")
	}

	res, _ = h.controlSession(ctx, callTool("control_session", map[string]any{"id": id, "command": "RESET"}))
	var u session.Update
	if err := json.Unmarshal([]byte(resultText(t, res)), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Running || u.Count != 0 || u.Stage != counter.StageUnset {
		t.Errorf("after RESET: %+v", u)
	}
}

// TestToolErrors verifies bad arguments come back as tool errors, not Go errors.
func TestToolErrors(t *testing.T) {
	h, m := newTestHandlers(t)
	ctx := context.Background()
	s, _ := m.Create(ctx)

	tests := []struct {
		name string
		call func() (*mcp.CallToolResult, error)
	}{
		{"get without id", func() (*mcp.CallToolResult, error) {
			return h.getSession(ctx, callTool("get_session", nil))
		}},
		{"get unknown id", func() (*mcp.CallToolResult, error) {
			return h.getSession(ctx, callTool("get_session", map[string]any{"id": "00000000-0000-0000-0000-000000000001"}))
		}},
		{"get malformed id", func() (*mcp.CallToolResult, error) {
			return h.getSession(ctx, callTool("get_session", map[string]any{"id": "abc"}))
		}},
		{"control bad command", func() (*mcp.CallToolResult, error) {
			return h.controlSession(ctx, callTool("control_session", map[string]any{"id": s.ID().String(), "command": "JUMP"}))
		}},
		{"control without command", func() (*mcp.CallToolResult, error) {
			return h.controlSession(ctx, callTool("control_session", map[string]any{"id": s.ID().String()}))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			if err != nil {
				t.Fatalf("unexpected Go error: %v", err)
			}
			if !res.IsError {
				t.Errorf("expected tool error, got %s", resultText(t, res))
			}
		})
	}
}

// TestGetSessionTool verifies a single session is returned by id.
func TestGetSessionTool(t *testing.T) {
	h, m := newTestHandlers(t)
	ctx := context.Background()
	s, _ := m.Create(ctx)

	res, _ := h.getSession(ctx, callTool("get_session", map[string]any{"id": s.ID().String()}))
	if res.IsError {
		t.Fatalf("get_session failed: %s", resultText(t, res))
	}
	var info session.Info
	if err := json.Unmarshal([]byte(resultText(t, res)), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.ID != s.ID().String() || info.State.Stage != counter.StageUnset {
		t.Errorf("info = %+v", info)
	}
}

// TestSessionsResource verifies the resource returns the session list as JSON.
func TestSessionsResource(t *testing.T) {
	h, m := newTestHandlers(t)
	ctx := context.Background()
	s, _ := m.Create(ctx)

	var req mcp.ReadResourceRequest
	req.Params.URI = "repcam://sessions"
	contents, err := h.sessionsResource(ctx, req)
	if err != nil {
		t.Fatalf("sessionsResource: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("unexpected content type %T", contents[0])
	}
	if text.URI != "repcam://sessions" || !strings.Contains(text.Text, s.ID().String()) {
		t.Errorf("resource = %+v", text)
	}
}

// TestNewRegistersTools verifies the server advertises every tool over JSON-RPC.
func TestNewRegistersTools(t *testing.T) {
	_, m := newTestHandlers(t)
	s := New(NewManagerSource(m), "test", slog.New(slog.NewTextHandler(io.Discard, nil)))

	resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	for _, name := range []string{"list_sessions", "get_session", "control_session"} {
		if !strings.Contains(string(data), `"`+name+`"`) {
			t.Errorf("tool %q not listed in %s", name, data)
		}
	}
}
