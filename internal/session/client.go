package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotReady is returned while the session service has a session but no
// endpoint for it yet. Callers are expected to poll.
var ErrNotReady = errors.New("session not ready")

// Endpoint is the address of a running game server.
type Endpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Client talks to the external session service:
//
//	POST {base}/session        -> {"id": "..."}
//	GET  {base}/session?id=... -> {"ip": "...", "port": n} once ready
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Create asks the session service for a new game session and returns its id.
func (c *Client) Create(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session", nil)
	if err != nil {
		return "", err
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("create session: unexpected status %d", res.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if body.ID == "" {
		return "", errors.New("create session: empty session id")
	}
	return body.ID, nil
}

// Endpoint fetches the session's address, returning ErrNotReady while the
// service has not yet produced one.
func (c *Client) Endpoint(ctx context.Context, sessionID string) (Endpoint, error) {
	u := c.baseURL + "/session?id=" + url.QueryEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Endpoint{}, err
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return Endpoint{}, fmt.Errorf("get session: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return Endpoint{}, ErrNotReady
	}

	var ep Endpoint
	if err := json.NewDecoder(res.Body).Decode(&ep); err != nil {
		return Endpoint{}, ErrNotReady
	}
	if ep.IP == "" || ep.Port == 0 {
		return Endpoint{}, ErrNotReady
	}
	return ep, nil
}
