package gurbani

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is where the bundled search server listens.
const DefaultBaseURL = "http://localhost:3033"

// maxBodySize caps how much of a response is read. A full shabad is a few KB.
const maxBodySize = 8 << 20

type Client struct {
	http    *http.Client
	baseURL *url.URL
	logger  zerolog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func NewClient(baseURL string, timeout time.Duration, opts ...ClientOption) (*Client, error) {
	u, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: u,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParseBaseURL validates a server URL. Only http and https are accepted.
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("server url %q has no host", raw)
	}
	return u, nil
}

// endpoint joins already-escaped path segments onto the base URL.
func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := c.baseURL.JoinPath(segments...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Get issues a GET and decodes a JSON body into result. Every failure is
// returned as a *ProviderError tagged with op.
func (c *Client) Get(ctx context.Context, op, endpoint string, result any) error {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &ProviderError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Ctx(ctx).Err(err).Str("op", op).Str("url", endpoint).Msg("request failed")
		return &ProviderError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Ctx(ctx).
		Str("op", op).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("search server response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("server returned %s", resp.Status),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(result); err != nil {
		return &ProviderError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %v", ErrMalformedPayload, err),
		}
	}
	return nil
}
