// Package httptool implements a capability backed by a JSON-over-HTTP
// endpoint. The call arguments are posted as a JSON object; the response
// body is returned verbatim as the capability result.
package httptool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/port/toolrunner"
)

const adapterName = "http"

// Client invokes one remote endpoint as a capability.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an HTTP capability client for the given endpoint.
func NewClient(url, apiKey string) *Client {
	return &Client{
		url:        url,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

// Call posts the arguments and returns the raw JSON response.
func (c *Client) Call(ctx context.Context, args map[string]string) (json.RawMessage, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("httptool marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("httptool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if sid := logger.SessionID(ctx); sid != "" {
		req.Header.Set("X-Session-ID", sid)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httptool call: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("httptool read: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("httptool: endpoint returned %d: %s", resp.StatusCode, data)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("httptool: endpoint returned invalid JSON")
	}
	return json.RawMessage(data), nil
}

func init() {
	toolrunner.RegisterFactory(adapterName, func(config map[string]string) (toolrunner.Capability, error) {
		url := config["url"]
		if url == "" {
			return nil, fmt.Errorf("httptool: url is required")
		}
		client := NewClient(url, config["api_key"])
		return client.Call, nil
	})
}
