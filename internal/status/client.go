package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/treedoc/internal/report"
)

// Client reads a status server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the server at addr ("host:port" or a URL).
func NewClient(addr string) *Client {
	base := strings.TrimSuffix(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{baseURL: base, http: &http.Client{Timeout: 5 * time.Second}}
}

// Progress fetches GET /progress.
func (c *Client) Progress(ctx context.Context) (report.Snapshot, error) {
	var snap report.Snapshot
	err := c.get(ctx, "/progress", &snap)
	return snap, err
}

// Usage fetches GET /usage.
func (c *Client) Usage(ctx context.Context) (UsageResponse, error) {
	var u UsageResponse
	err := c.get(ctx, "/usage", &u)
	return u, err
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
