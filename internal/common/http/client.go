// internal/common/http/client.go
package http

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// BrowserUserAgent is sent on page fetches; several sites refuse the Go default.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

// Client is a thin wrapper over http.Client that stamps a User-Agent and caps
// response bodies.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxBodyBytes int64
}

type Option func(*Client)

// WithUserAgent sets the User-Agent header for requests that lack one.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxBodyBytes caps how much of a response body ReadBody will return.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) { c.maxBodyBytes = n }
}

// WithHTTPClient replaces the underlying client, e.g. with httptest's.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		maxBodyBytes: 2 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return c.httpClient.Do(req)
}

// ReadBody reads at most the configured cap from resp and closes it.
func (c *Client) ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
