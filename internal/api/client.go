// Package api is the client for the Artemis REST API.
//
// Every call builds a request (GET by default, POST when a body is
// present), optionally validates the decoded response against the struct's
// validate tags, and normalizes failures into an *Error whose Kind tells the
// caller how to surface it.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"
)

// Environment controls how much detail schema errors expose.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// APIKeyHeader carries the caller's API key.
const APIKeyHeader = "x-api-key"

// maxResponseSize bounds how much of a response body is read.
const maxResponseSize = 32 << 20

// Options configures a Client.
type Options struct {
	BaseURL     string
	APIKey      string
	HTTPClient  *http.Client
	Timeout     time.Duration // Used when HTTPClient is nil
	RateLimit   float64       // Requests per second; 0 disables throttling
	RateBurst   int
	Session     SessionState
	Environment Environment
}

// Client talks to the Artemis API. A Client is safe for concurrent use;
// WithAPIKey and WithSession return shallow copies sharing the transport
// and rate limiter.
type Client struct {
	baseURL  *url.URL
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
	session  SessionState
	env      Environment
	validate *validator.Validate
}

// NewClient creates a client for the API at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst <= 0 {
		burst = 1
	}

	session := opts.Session
	if session == nil {
		session = NewMemorySession()
	}

	env := opts.Environment
	if env == "" {
		env = Production
	}

	return &Client{
		baseURL:  base,
		apiKey:   opts.APIKey,
		http:     hc,
		limiter:  rate.NewLimiter(limit, burst),
		session:  session,
		env:      env,
		validate: validator.New(),
	}, nil
}

// WithAPIKey returns a copy of c that authenticates with key.
func (c *Client) WithAPIKey(key string) *Client {
	cp := *c
	cp.apiKey = key
	return &cp
}

// WithSession returns a copy of c bound to session.
func (c *Client) WithSession(session SessionState) *Client {
	cp := *c
	cp.session = session
	return &cp
}

// Session returns the session state the client is bound to.
func (c *Client) Session() SessionState {
	return c.session
}

// request describes one API call.
type request struct {
	method     string // Defaults to GET, or POST when body is set
	path       string
	query      url.Values
	body       any
	out        any    // Decoded response target, nil to discard
	defaultMsg string // Message used when nothing better is available
	validate   bool   // Validate out against its struct tags
}

func (r request) resolvedMethod() string {
	if r.method != "" {
		return r.method
	}
	if r.body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// do executes r and returns nil or an *Error.
func (c *Client) do(ctx context.Context, r request) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return normalizeTransport(ctxErr(ctx, err), r.defaultMsg)
	}

	req, err := c.newRequest(ctx, r)
	if err != nil {
		return normalizeTransport(err, r.defaultMsg)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return normalizeTransport(ctxErr(ctx, err), r.defaultMsg)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return normalizeTransport(ctxErr(ctx, err), r.defaultMsg)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return normalizeResponse(resp.StatusCode, statusText(resp.StatusCode, resp.Status), body, r.defaultMsg)
	}

	if r.out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, r.out); err != nil {
		return c.schemaError(fmt.Errorf("decode %s %s: %w", req.Method, r.path, err))
	}
	if r.validate {
		if err := c.check(r.out); err != nil {
			return c.schemaError(fmt.Errorf("validate %s %s: %w", req.Method, r.path, err))
		}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	// r.path is already escaped.
	u := *c.baseURL
	escaped := strings.TrimRight(u.EscapedPath(), "/") + "/" + strings.TrimLeft(r.path, "/")
	unescaped, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, fmt.Errorf("build path: %w", err)
	}
	u.Path, u.RawPath = unescaped, escaped
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.resolvedMethod(), u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}
	return req, nil
}

// check validates v against its validate tags. Values that are not structs
// have nothing to check.
func (c *Client) check(v any) error {
	err := c.validate.Struct(v)
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	return err
}

// schemaError exposes the raw cause in development and a generic message
// otherwise.
func (c *Client) schemaError(cause error) *Error {
	msg := UnexpectedFormatMessage
	if c.env == Development {
		msg = cause.Error()
	}
	return &Error{Kind: KindSchemaMismatch, Message: msg, Err: cause}
}

// ctxErr prefers the context's own error so cancellation is recognized even
// when the transport wraps it.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
