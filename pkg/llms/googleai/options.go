package googleai

import (
	"net/http"
	"os"

	"cloud.google.com/go/auth"
	"google.golang.org/genai"
)

const (
	// APIKeyEnvVarName is read when WithAPIKey is not used.
	APIKeyEnvVarName = "GOOGLE_API_KEY" //nolint:gosec
	// DefaultModel is the default Gemini model.
	DefaultModel = "gemini-2.5-flash"
)

// Options is a set of options for Gemini API and Vertex AI clients.
type Options struct {
	CloudProject          string
	CloudLocation         string
	DefaultModel          string
	DefaultCandidateCount int
	DefaultMaxTokens      int
	DefaultTemperature    float64
	DefaultTopK           int
	DefaultTopP           float64
	HarmThreshold         genai.HarmBlockThreshold
	APIKey                string
	BaseURL               string
	Credentials           *auth.Credentials
	HTTPClient            *http.Client
}

// DefaultOptions returns the defaults used by New.
func DefaultOptions() Options {
	return Options{
		DefaultModel:          DefaultModel,
		DefaultCandidateCount: 1,
		DefaultMaxTokens:      8192,
		DefaultTemperature:    0.5,
		DefaultTopK:           3,
		DefaultTopP:           0.95,
		HarmThreshold:         genai.HarmBlockThresholdBlockOnlyHigh,
	}
}

// EnsureAuthPresent falls back to the GOOGLE_API_KEY environment variable
// when neither credentials nor an API key are configured.
func (o *Options) EnsureAuthPresent() {
	if o.Credentials == nil && o.APIKey == "" {
		o.APIKey = os.Getenv(APIKeyEnvVarName)
	}
}

// Backend returns Vertex AI when a cloud project is set, Gemini API otherwise.
func (o *Options) Backend() genai.Backend {
	if o.CloudProject != "" {
		return genai.BackendVertexAI
	}
	return genai.BackendGeminiAPI
}

// Option configures the client.
type Option func(*Options)

// WithAPIKey passes the API key to the client.
func WithAPIKey(apiKey string) Option {
	return func(opts *Options) {
		opts.APIKey = apiKey
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithCredentials authenticates API calls with the given credentials.
func WithCredentials(credentials *auth.Credentials) Option {
	return func(opts *Options) {
		if credentials == nil {
			return
		}
		opts.Credentials = credentials
	}
}

// WithHTTPClient uses the provided HTTP client to make requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = httpClient
	}
}

// WithCloudProject sets the GCP project, which selects the Vertex AI backend.
func WithCloudProject(p string) Option {
	return func(opts *Options) {
		opts.CloudProject = p
	}
}

// WithCloudLocation sets the GCP region for Vertex AI.
func WithCloudLocation(l string) Option {
	return func(opts *Options) {
		opts.CloudLocation = l
	}
}

// WithDefaultModel sets the model used when a call does not specify one.
func WithDefaultModel(defaultModel string) Option {
	return func(opts *Options) {
		opts.DefaultModel = defaultModel
	}
}

// WithDefaultMaxTokens sets the maximum output token count.
func WithDefaultMaxTokens(maxTokens int) Option {
	return func(opts *Options) {
		opts.DefaultMaxTokens = maxTokens
	}
}

// WithDefaultTemperature sets the sampling temperature.
func WithDefaultTemperature(defaultTemperature float64) Option {
	return func(opts *Options) {
		opts.DefaultTemperature = defaultTemperature
	}
}

// WithHarmThreshold sets the safety threshold for all harm categories.
func WithHarmThreshold(ht genai.HarmBlockThreshold) Option {
	return func(opts *Options) {
		opts.HarmThreshold = ht
	}
}
