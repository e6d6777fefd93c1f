// Package client talks to a running flowrec server.
package client

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

	"github.com/ivikasavnish/go-flowrec/pkg/command"
	"github.com/ivikasavnish/go-flowrec/pkg/controller"
	"github.com/ivikasavnish/go-flowrec/pkg/flowstore"
)

// APIError is a failed reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client handles communication with the flowrec server
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Send posts a raw message and decodes the reply payload into out, which may
// be nil.
func (c *Client) Send(ctx context.Context, msg controller.Message, out interface{}) error {
	return c.do(ctx, http.MethodPost, "/api/messages", msg, out)
}

func (c *Client) StartRecording(ctx context.Context) (controller.SessionInfo, error) {
	var info controller.SessionInfo
	err := c.do(ctx, http.MethodPost, "/api/recording/start", nil, &info)
	return info, err
}

func (c *Client) PauseRecording(ctx context.Context) (controller.SessionInfo, error) {
	var info controller.SessionInfo
	err := c.do(ctx, http.MethodPost, "/api/recording/pause", nil, &info)
	return info, err
}

func (c *Client) ResumeRecording(ctx context.Context) (controller.SessionInfo, error) {
	var info controller.SessionInfo
	err := c.do(ctx, http.MethodPost, "/api/recording/resume", nil, &info)
	return info, err
}

func (c *Client) StopRecording(ctx context.Context) (controller.SessionInfo, error) {
	var info controller.SessionInfo
	err := c.do(ctx, http.MethodPost, "/api/recording/stop", nil, &info)
	return info, err
}

func (c *Client) Status(ctx context.Context) (controller.Status, error) {
	var st controller.Status
	err := c.do(ctx, http.MethodGet, "/api/recording", nil, &st)
	return st, err
}

// Generate renders cmds, or the server's current list when cmds is empty.
func (c *Client) Generate(ctx context.Context, target string, wrap bool, cmds command.List) (string, error) {
	var code controller.Code
	err := c.do(ctx, http.MethodPost, "/api/generate", controller.Message{
		Target:   target,
		Wrap:     wrap,
		Commands: cmds,
	}, &code)
	return code.Code, err
}

// SaveFlow stores cmds under name and returns the flow ID.
func (c *Client) SaveFlow(ctx context.Context, name, domain string, cmds command.List) (string, error) {
	var saved map[string]string
	err := c.do(ctx, http.MethodPost, "/api/flows", controller.Message{
		Name:     name,
		Domain:   domain,
		Commands: cmds,
	}, &saved)
	return saved["id"], err
}

func (c *Client) ListFlows(ctx context.Context, domain string) ([]flowstore.Flow, error) {
	path := "/api/flows"
	if domain != "" {
		path += "?domain=" + url.QueryEscape(domain)
	}
	var flows []flowstore.Flow
	err := c.do(ctx, http.MethodGet, path, nil, &flows)
	return flows, err
}

func (c *Client) GetFlow(ctx context.Context, id string) (flowstore.Flow, error) {
	var f flowstore.Flow
	err := c.do(ctx, http.MethodGet, "/api/flows/"+url.PathEscape(id), nil, &f)
	return f, err
}

func (c *Client) DeleteFlow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/flows/"+url.PathEscape(id), nil, nil)
}

// Navigate loads target in the server's browser.
func (c *Client) Navigate(ctx context.Context, target string) error {
	return c.do(ctx, http.MethodPost, "/api/navigate", map[string]string{"url": target}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(jsonData)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var reply struct {
		Success bool            `json:"success"`
		Error   string          `json:"error"`
		Data    json.RawMessage `json:"data"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode != http.StatusOK || !reply.Success {
		return &APIError{Status: resp.StatusCode, Message: reply.Error}
	}
	if out == nil || len(reply.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Data, out); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}
