// Package client talks to the control API of a running sidecar supervisor.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/loykin/sidecar/internal/metrics"
	"github.com/loykin/sidecar/internal/status"
)

// Client provides HTTP access to the supervisor control API.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	// Timeout bounds each request. Retry blocks for a full health wait, so
	// keep it above the supervisor's health timeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

const (
	DefaultBaseURL = "http://127.0.0.1:8788/runtime"
	DefaultTimeout = 30 * time.Second
)

// ErrNoProcess is returned by Process when no runtime is installed.
var ErrNoProcess = errors.New("no managed runtime process")

// APIError is a non-2xx answer from the control API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// ProcessInfo mirrors GET {base}/process.
type ProcessInfo struct {
	PID    int                    `json:"pid"`
	Sample *metrics.ProcessSample `json:"sample,omitempty"`
}

func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
}

func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the supervisor answers on its status endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Status(ctx)
	if err != nil {
		c.logger.Debug("Supervisor unreachable", "error", err)
		return false
	}
	return true
}

// Status returns the current runtime snapshot.
func (c *Client) Status(ctx context.Context) (status.Snapshot, error) {
	var snap status.Snapshot
	err := c.do(ctx, http.MethodGet, "/status", &snap)
	return snap, err
}

// Retry asks the supervisor to relaunch the runtime and returns the resulting snapshot.
func (c *Client) Retry(ctx context.Context) (status.Snapshot, error) {
	c.logger.Debug("Requesting runtime retry", "url", c.baseURL)
	var snap status.Snapshot
	if err := c.do(ctx, http.MethodPost, "/retry", &snap); err != nil {
		return snap, err
	}
	c.logger.Debug("Runtime retry completed", "status", snap.Status, "launchMode", snap.LaunchMode)
	return snap, nil
}

// Process returns the pid and resource sample of the managed runtime.
func (c *Client) Process(ctx context.Context) (ProcessInfo, error) {
	var info ProcessInfo
	err := c.do(ctx, http.MethodGet, "/process", &info)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return info, ErrNoProcess
	}
	return info, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	c.logger.Debug("API request failed", "status", resp.StatusCode, "error", msg)
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
