// Package upstream is the HTTP JSON client shared by the API-backed
// conversation sources.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"unreplied/internal/domain"
)

const maxErrorBody = 512

// Client is a thin HTTP wrapper for a JSON API. It handles base URL
// construction, fixed headers, client-side rate limiting and status
// classification.
type Client struct {
	baseURL string
	headers http.Header
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates an API client for baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: make(http.Header),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	c.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON performs a GET request and decodes the response into out.
//
// 404 maps to domain.ErrNotFound, 401 and 403 to domain.ErrMisconfigured
// and any other failure to domain.ErrUpstreamUnavailable.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", domain.ErrUpstreamUnavailable, err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", domain.ErrMisconfigured, err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request to %s: %w", domain.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s: %v", domain.ErrUpstreamUnavailable, path, err)
	}
	return nil
}

func statusError(path string, status int, body string) error {
	var kind error
	switch status {
	case http.StatusNotFound:
		kind = domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = domain.ErrMisconfigured
	default:
		kind = domain.ErrUpstreamUnavailable
	}
	return fmt.Errorf("%w: GET %s returned %d: %s", kind, path, status, body)
}
