// Package remote is the HTTP transport shared by every component that calls
// an out-of-process service: the external policy engine, the native
// moderation classifier and the translation service.
//
// A Client owns a pooled http.Client and implements a bounded retry policy
// with exponential backoff for transient failures (network errors and 5xx).
// Errors are returned as typed values (StatusError, TimeoutError,
// TransportError, ParseError) so callers can classify them without string
// matching.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"openserver-hq/guardrails/pkg/telemetry/tracing"
)

// maxErrorBody bounds how much of an error or malformed body is kept.
const maxErrorBody = 512

// Config configures a Client.
type Config struct {
	// Name identifies the remote service in errors and logs.
	Name string

	// Timeout bounds a single call, retries included. Zero means the
	// caller's context is the only bound.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after a transient
	// failure. Zero disables retries.
	MaxRetries int

	// Backoff is the base retry delay, doubled per attempt.
	Backoff time.Duration

	// MaxIdleConnsPerHost sizes the connection pool.
	MaxIdleConnsPerHost int

	// MaxResponseBytes bounds the decoded response size.
	MaxResponseBytes int64
}

// Client performs JSON calls against one remote service.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a client with connection pooling.
func NewClient(config Config, logger *slog.Logger) *Client {
	if config.Backoff <= 0 {
		config.Backoff = 100 * time.Millisecond
	}
	if config.MaxIdleConnsPerHost <= 0 {
		config.MaxIdleConnsPerHost = 16
	}
	if config.MaxResponseBytes <= 0 {
		config.MaxResponseBytes = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        config.MaxIdleConnsPerHost * 2,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config: config,
		client: &http.Client{Transport: transport},
		logger: logger,
	}
}

// NewClientWithHTTP wraps an existing http.Client. Used by tests that point
// at an httptest server.
func NewClientWithHTTP(config Config, hc *http.Client, logger *slog.Logger) *Client {
	c := NewClient(config, logger)
	if hc != nil {
		c.client = hc
	}
	return c
}

// Name returns the configured service name.
func (c *Client) Name() string {
	return c.config.Name
}

// Timeout returns the configured per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}

// DoJSON POSTs reqBody as JSON to url and decodes the response into respBody.
// The call is bounded by the configured timeout and by ctx.
func (c *Client) DoJSON(ctx context.Context, url string, reqBody, respBody any, headers map[string]string) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	raw, err := c.do(ctx, url, body, headers)
	if err != nil {
		return err
	}

	if respBody == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &ParseError{Service: c.config.Name, Cause: errors.New("empty response body")}
	}
	if err := json.Unmarshal(raw, respBody); err != nil {
		return &ParseError{
			Service:     c.config.Name,
			RawResponse: truncate(raw),
			Cause:       fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error) {
	backoff := retry.NewExponential(c.config.Backoff)
	backoff = retry.WithMaxRetries(uint64(max(c.config.MaxRetries, 0)), backoff)

	var (
		raw     []byte
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.logger.Debug("retrying request",
				"service", c.config.Name,
				"attempt", attempt-1,
				"max_retries", c.config.MaxRetries,
			)
		}

		var err error
		raw, err = c.attempt(ctx, url, body, headers)
		if err == nil || ctx.Err() != nil || !retryable(err) {
			return err
		}
		c.logger.Warn("request failed",
			"service", c.config.Name,
			"attempt", attempt,
			"error", err,
		)
		return retry.RetryableError(err)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.contextError(ctx)
		}
		return nil, err
	}
	return raw, nil
}

// retryable reports whether err is a transient failure worth another attempt.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var pe *ParseError
	return !errors.As(err, &pe)
}

func (c *Client) attempt(ctx context.Context, url string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.contextError(ctx)
		}
		return nil, &TransportError{Service: c.config.Name, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.contextError(ctx)
		}
		return nil, &TransportError{Service: c.config.Name, Cause: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			Service:    c.config.Name,
			StatusCode: resp.StatusCode,
			Message:    truncate(raw),
		}
	}
	return raw, nil
}

// contextError converts a finished context into a typed error. Cancellation
// by the caller is returned as context.Canceled so it can be told apart from
// a timeout.
func (c *Client) contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("service %q: %w", c.config.Name, context.Canceled)
	}
	return &TimeoutError{Service: c.config.Name, Timeout: c.config.Timeout}
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
