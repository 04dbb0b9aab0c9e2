package anthropic

import (
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// TokenEnvVarName is read when WithToken is not used.
	TokenEnvVarName = "ANTHROPIC_API_KEY" //nolint:gosec
	// DefaultModel is used when WithModel is not used.
	DefaultModel = "claude-sonnet-4-5"
	// DefaultBaseURL is the Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"
)

// Options of the Anthropic client.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
	HTTPClient option.HTTPClient
	MaxRetries int

	// BetaHeader is sent as 'anthropic-beta' when set.
	BetaHeader string
}

// Option configures the client.
type Option func(*Options)

// WithToken passes the Anthropic API token to the client. If not set, the token
// is read from the ANTHROPIC_API_KEY environment variable.
func WithToken(token string) Option {
	return func(opts *Options) {
		opts.Token = token
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(opts *Options) {
		opts.Model = model
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client option.HTTPClient) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithMaxRetries sets the number of retries on transient errors.
func WithMaxRetries(n int) Option {
	return func(opts *Options) {
		opts.MaxRetries = n
	}
}

// WithBetaHeader adds the 'anthropic-beta' header.
func WithBetaHeader(value string) Option {
	return func(opts *Options) {
		opts.BetaHeader = value
	}
}
