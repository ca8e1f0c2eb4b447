package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/repcam/internal/session"
)

// HTTPClient implements DataSource by calling the RepCam REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the sessions live on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// may be empty when the server does not require one.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode body: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, data)
	}

	return data, nil
}

func (c *HTTPClient) ListSessions(ctx context.Context) ([]session.Info, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/sessions", nil)
	if err != nil {
		return nil, err
	}

	var infos []session.Info
	if err := json.Unmarshal(body, &infos); err != nil {
		return nil, fmt.Errorf("httpclient: decode sessions: %w", err)
	}
	return infos, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, id string) (*session.Info, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var info session.Info
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("httpclient: decode session: %w", err)
	}
	return &info, nil
}

func (c *HTTPClient) ControlSession(ctx context.Context, id string, cmd session.Command) (*session.Update, error) {
	body, err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/commands",
		map[string]string{"command": string(cmd)})
	if err != nil {
		return nil, err
	}

	var u session.Update
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("httpclient: decode update: %w", err)
	}
	return &u, nil
}
