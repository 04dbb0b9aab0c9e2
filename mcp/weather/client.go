// Package weather implements the National Weather Service client and the
// weather MCP server.
package weather

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/mcp", "weather")

// NWS API defaults
const (
	DefaultBaseURL   = "https://api.weather.gov"
	DefaultUserAgent = "weather-app/1.0"
	DefaultTimeout   = 30 * time.Second
)

// Client calls the NWS API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithUserAgent sets the User-Agent header, NWS requires one.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient returns the NWS client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get returns the response body, or nil on any failure.
func (c *Client) get(ctx context.Context, endpoint, url string) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c.failed(ctx, endpoint, url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.failed(ctx, endpoint, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return c.failed(ctx, endpoint, url, errors.Newf("unexpected status: %s", resp.Status))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.failed(ctx, endpoint, url, err)
	}
	return body
}

func (c *Client) failed(ctx context.Context, endpoint, url string, err error) []byte {
	metricskey.StatsWeatherRequestsFailed.IncrCounter(1, endpoint)
	logger.ContextKV(ctx, xlog.DEBUG,
		"url", url,
		"err", err.Error(),
	)
	return nil
}
