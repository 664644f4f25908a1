// Package apiclient provides a typed client for the maneger REST API.
//
// Every call attaches the bearer token of the injected session, carries a
// fresh X-Request-ID and normalizes failures into *Error. A 401 on an
// authenticated call invokes the session-invalidated callback so the owner
// of the session can clear it.
package apiclient

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

	"github.com/google/uuid"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token for each call. An empty token means
// the call is sent unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// Timeouts bounds each class of call.
type Timeouts struct {
	// Default bounds ordinary calls.
	Default time.Duration
	// Upload bounds multipart uploads.
	Upload time.Duration
	// RAGRun bounds a research run.
	RAGRun time.Duration
	// RAGSession bounds research session creation.
	RAGSession time.Duration
}

// DefaultTimeouts returns the budgets the API is sized for.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Default:    30 * time.Second,
		Upload:     120 * time.Second,
		RAGRun:     120 * time.Second,
		RAGSession: 15 * time.Second,
	}
}

// Client issues authenticated calls against the API.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        TokenSource
	onInvalidated func()
	logger        *slog.Logger
	metrics       *Metrics
	timeouts      Timeouts
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithSessionInvalidated registers the callback run when an authenticated
// call is rejected with 401.
func WithSessionInvalidated(fn func()) Option {
	return func(c *Client) { c.onInvalidated = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics records every call in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTimeouts overrides the per-class call budgets. Zero fields keep their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(c *Client) {
		if t.Default > 0 {
			c.timeouts.Default = t.Default
		}
		if t.Upload > 0 {
			c.timeouts.Upload = t.Upload
		}
		if t.RAGRun > 0 {
			c.timeouts.RAGRun = t.RAGRun
		}
		if t.RAGSession > 0 {
			c.timeouts.RAGSession = t.RAGSession
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     StaticToken(""),
		logger:     slog.Default(),
		timeouts:   DefaultTimeouts(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes one request. route is the path template used for metrics.
type call struct {
	method  string
	route   string
	path    string
	query   url.Values
	body    any
	out     any
	timeout time.Duration
}

// do sends a JSON call.
func (c *Client) do(ctx context.Context, cl call) error {
	var body io.Reader
	contentType := ""
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.send(ctx, cl, body, contentType)
}

// send performs the round trip and decodes the response into cl.out.
func (c *Client) send(ctx context.Context, cl call, body io.Reader, contentType string) error {
	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.timeouts.Default
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	token := c.tokens.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(cl.method, cl.route, 0, time.Since(start))
		c.logger.Debug("API call failed",
			"method", cl.method,
			"path", cl.path,
			"request_id", requestID,
			"error", err)
		return &Error{Kind: KindNetwork, Method: cl.method, Path: cl.path, err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.metrics.observe(cl.method, cl.route, resp.StatusCode, time.Since(start))
	if err != nil {
		return &Error{Kind: KindNetwork, Method: cl.method, Path: cl.path, err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: errorMessage(data),
			Method:  cl.method,
			Path:    cl.path,
		}
		c.logger.Debug("API call rejected",
			"method", cl.method,
			"path", cl.path,
			"status", resp.StatusCode,
			"request_id", requestID,
			"message", apiErr.Message)
		if apiErr.Kind == KindUnauthorized && token != "" && c.onInvalidated != nil {
			c.onInvalidated()
		}
		return apiErr
	}

	if cl.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, cl.out); err != nil {
		return &Error{
			Kind:   KindDecode,
			Status: resp.StatusCode,
			Method: cl.method,
			Path:   cl.path,
			err:    fmt.Errorf("unmarshal response: %w", err),
		}
	}
	return nil
}

// errorMessage extracts {"error": "..."} (or "message") from an error body.
func errorMessage(data []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

// projectPath builds /api/projects/{id}[/parts...] with escaped segments.
func projectPath(projectID ID, parts ...string) string {
	var b strings.Builder
	b.WriteString("/api/projects/")
	b.WriteString(url.PathEscape(projectID.String()))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}
