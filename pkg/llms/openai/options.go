package openai

import (
	"net/http"

	"github.com/effective-security/mcpagent/pkg/llms"
)

// environment variables read when the option is not set
const (
	tokenEnvVarName        = "OPENAI_API_KEY"      //nolint:gosec
	modelEnvVarName        = "OPENAI_MODEL"        //nolint:gosec
	baseURLEnvVarName      = "OPENAI_BASE_URL"     //nolint:gosec
	organizationEnvVarName = "OPENAI_ORGANIZATION" //nolint:gosec

	groqTokenEnvVarName       = "GROQ_API_KEY"       //nolint:gosec
	perplexityTokenEnvVarName = "PERPLEXITY_API_KEY" //nolint:gosec
)

// Provider defaults
const (
	DefaultBaseURL         = "https://api.openai.com/v1"
	DefaultModel           = "gpt-4o-mini"
	GroqBaseURL            = "https://api.groq.com/openai/v1"
	GroqDefaultModel       = "llama-3.3-70b-versatile"
	PerplexityBaseURL      = "https://api.perplexity.ai"
	PerplexityDefaultModel = "sonar"
	defaultMaxRetries      = 2
)

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	provider     llms.ProviderType
	httpClient   *http.Client
	maxRetries   int
}

// Option is a functional option for the OpenAI compatible client.
type Option func(*options)

// WithToken sets the API token. If not set, the token is read from the
// provider environment variable: OPENAI_API_KEY, GROQ_API_KEY or PERPLEXITY_API_KEY.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization sets the OpenAI organization.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithProvider selects OpenAI, Groq or Perplexity defaults.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithMaxRetries sets the number of retries on transient errors.
func WithMaxRetries(n int) Option {
	return func(opts *options) {
		opts.maxRetries = n
	}
}
