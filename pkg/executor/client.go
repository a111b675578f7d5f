// Package executor talks to the remote service that runs pipeline documents.
// The protocol is a single JSON request/response exchange per run.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout  = 120 * time.Second
	maxResponseSize = 32 << 20
	maxErrorSnippet = 512
)

// runRequest is the body of POST /run. yaml_text is the field name older
// executors read; both carry the same document.
type runRequest struct {
	DocumentText string `json:"document_text"`
	YAMLText     string `json:"yaml_text"`
}

// Client submits documents to a remote executor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client for the executor at baseURL. A zero timeout selects
// the default.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("executor url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("executor url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// BaseURL returns the executor address the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Run submits one document and returns the executor's outcome. A failure the
// executor reports is returned as an Outcome with OK false and a nil error;
// the error is non-nil only when no well-formed response arrived, and is then
// an *ExecutionError. There is no retry.
func (c *Client) Run(ctx context.Context, document string) (Outcome, error) {
	body, err := json.Marshal(runRequest{DocumentText: document, YAMLText: document})
	if err != nil {
		return Outcome{}, &ExecutionError{Message: "encode request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return Outcome{}, &ExecutionError{Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{}, &ExecutionError{Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Outcome{}, &ExecutionError{Message: "read response body", Cause: err}
	}
	c.logger.Debug("executor responded",
		"status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{}, &ExecutionError{
			Message: fmt.Sprintf("executor returned HTTP %d: %s", resp.StatusCode, snippet(data)),
		}
	}

	var out Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		return Outcome{}, &ExecutionError{Message: "decode response", Cause: err}
	}
	if !out.OK && out.Error == nil {
		out.Error = &ErrorPayload{Message: "executor reported failure without details"}
	}
	if !out.OK {
		out.Outputs = nil
	}
	return out, nil
}

// Health checks GET /health and expects {"ok": true}.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return &ExecutionError{Message: "build request", Cause: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ExecutionError{Message: "health check failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
	if err != nil {
		return &ExecutionError{Message: "read health response", Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &ExecutionError{Message: fmt.Sprintf("health check returned HTTP %d: %s", resp.StatusCode, snippet(data))}
	}
	var status struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(data, &status); err != nil {
		return &ExecutionError{Message: "decode health response", Cause: err}
	}
	if !status.OK {
		return &ExecutionError{Message: "executor reports not ok"}
	}
	return nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorSnippet {
		return s[:maxErrorSnippet] + "…"
	}
	return s
}
