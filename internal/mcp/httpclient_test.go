package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/repcam/internal/counter"
	"github.com/claude/repcam/internal/session"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by method and path. Verifies the HTTP client sends correct requests.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestHTTPClientListSessions verifies the list response is decoded and the
// API key header is sent.
func TestHTTPClientListSessions(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-API-Key"); got != "k" {
				t.Errorf("X-API-Key = %q, want k", got)
			}
			writeTestJSON(t, w, http.StatusOK, []session.Info{
				{ID: "a", State: counter.Snapshot{Count: 3, Stage: counter.StageUp}},
			})
		},
	})
	defer ts.Close()

	infos, err := NewHTTPClient(ts.URL+"/", "k").ListSessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].State.Count != 3 {
		t.Errorf("infos = %+v", infos)
	}
}

// TestHTTPClientControlSession verifies the command body and update decoding.
func TestHTTPClientControlSession(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/sessions/abc/commands": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["command"] != "RESET" {
				t.Errorf("command = %q, want RESET", body["command"])
			}
			writeTestJSON(t, w, http.StatusOK, session.Update{Session: "abc", Stage: counter.StageUnset})
		},
	})
	defer ts.Close()

	u, err := NewHTTPClient(ts.URL, "").ControlSession(context.Background(), "abc", session.CommandReset)
	if err != nil {
		t.Fatal(err)
	}
	if u.Session != "abc" || u.Count != 0 {
		t.Errorf("update = %+v", u)
	}
}

// TestHTTPClientErrorStatus verifies API errors surface with their message.
func TestHTTPClientErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/sessions/missing": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, http.StatusNotFound, map[string]string{"error": "session not found"})
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL, "").GetSession(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "session not found") {
		t.Errorf("error = %v", err)
	}
}
