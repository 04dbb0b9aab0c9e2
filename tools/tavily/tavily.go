// Package tavily implements a web search tool backed by the Tavily API.
package tavily

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"reflect"

	"github.com/cockroachdb/errors"
	tavilygo "github.com/diverged/tavily-go"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/x/values"
	"github.com/invopop/jsonschema"
)

const (
	// ToolName is the name of the tool exposed to the model.
	ToolName = "WebSearch"
	// APIKeyEnvVarName is read when the key is not set explicitly.
	APIKeyEnvVarName = "TAVILY_API_KEY" //nolint:gosec
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("TAVILY_API_KEY is not set")

// SearchRequest represents the tool input.
type SearchRequest struct {
	Query string `json:"Query" yaml:"Query" jsonschema:"title=Search Query,description=The query to search web."`
}

// SearchResult represents the structure for a search response
type SearchResult struct {
	Results []tavilyModels.SearchResult `json:"results" yaml:"Results" jsonschema:"title=results,description=The results from a web search."`
	Answer  string                      `json:"answer,omitempty" yaml:"Answer" jsonschema:"title=answer,description=The aggregated answer from a web search."`
}

// Tool is a tool that provides a web search functionality
type Tool struct {
	apiKey         string
	baseURL        string
	httpClient     *http.Client
	searchDepth    string
	includeDomains []string
	excludeDomains []string
	params         *jsonschema.Schema
}

var _ tools.Tool[SearchRequest, SearchResult] = (*Tool)(nil)

// New returns the search tool. The API key is read from TAVILY_API_KEY.
func New() (*Tool, error) {
	sc, err := schema.New(reflect.TypeOf(SearchRequest{}))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create schema")
	}
	t := &Tool{
		apiKey:      os.Getenv(APIKeyEnvVarName),
		httpClient:  http.DefaultClient,
		searchDepth: "basic",
		params:      sc.Parameters,
	}
	if t.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return t, nil
}

// WithAPIKey overrides the API key.
func (t *Tool) WithAPIKey(key string) *Tool {
	t.apiKey = values.StringsCoalesce(key, t.apiKey)
	return t
}

// WithBaseURL overrides the API endpoint.
func (t *Tool) WithBaseURL(baseURL string) *Tool {
	t.baseURL = baseURL
	return t
}

// WithHTTPClient sets the HTTP client.
func (t *Tool) WithHTTPClient(client *http.Client) *Tool {
	t.httpClient = client
	return t
}

// WithSearchDepth sets "basic" or "advanced" search.
func (t *Tool) WithSearchDepth(depth string) *Tool {
	t.searchDepth = depth
	return t
}

// WithDomains limits the search to, or excludes, the given domains.
func (t *Tool) WithDomains(include, exclude []string) *Tool {
	t.includeDomains = include
	t.excludeDomains = exclude
	return t
}

// Name implements tools.ITool.
func (t *Tool) Name() string {
	return ToolName
}

// Description implements tools.ITool.
func (t *Tool) Description() string {
	return "A tool that provides a web search functionality."
}

// Parameters implements tools.ITool.
func (t *Tool) Parameters() any {
	return t.params
}

// Run performs the search.
func (t *Tool) Run(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	if req.Query == "" {
		return nil, errors.New("invalid request: empty query")
	}

	client := tavilygo.NewClient(t.apiKey)
	if t.baseURL != "" {
		client.BaseURL = t.baseURL
	}
	if t.httpClient != nil {
		client.HTTPClient = t.httpClient
	}

	searchResp, err := tavilygo.Search(client, tavilyModels.SearchRequest{
		Query:          req.Query,
		SearchDepth:    t.searchDepth,
		IncludeAnswer:  true,
		IncludeDomains: t.includeDomains,
		ExcludeDomains: t.excludeDomains,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to perform search")
	}

	return &SearchResult{
		Results: searchResp.Results,
		Answer:  searchResp.Answer,
	}, nil
}

// Call implements tools.ITool.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var req SearchRequest
	if err := llmutils.DecodeJSON(input, &req); err != nil {
		return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return llmutils.ToJSON(out), nil
}

func (r *SearchResult) String() string {
	var buf bytes.Buffer
	if r.Answer != "" {
		fmt.Fprintf(&buf, "ANSWER: %s\n", r.Answer)
	}

	for _, result := range r.Results {
		fmt.Fprintf(&buf, "- URL: %s\n", result.URL)
		fmt.Fprintf(&buf, "  TITLE: %s\n", result.Title)
		fmt.Fprintf(&buf, "  SCORE: %f\n", result.Score)
		fmt.Fprintf(&buf, "  CONTENT: %s\n", result.Content)
	}

	return buf.String()
}
