package tavily_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/mcpagent/tools/tavily"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_New_MissingKey(t *testing.T) {
	t.Setenv(tavily.APIKeyEnvVarName, "")
	_, err := tavily.New()
	assert.ErrorIs(t, err, tavily.ErrMissingAPIKey)
}

func Test_Tool(t *testing.T) {
	t.Setenv(tavily.APIKeyEnvVarName, "testkey")

	var lastReq tavilyModels.SearchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		err := json.NewDecoder(r.Body).Decode(&lastReq)
		assert.NoError(t, err)

		resp := tavily.SearchResult{
			Results: []tavilyModels.SearchResult{
				{Title: "Test Result", URL: "https://example.com", Content: "Test content", Score: 0.9},
			},
		}
		if lastReq.IncludeAnswer {
			resp.Answer = "Paris"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ctx := context.Background()

	tool, err := tavily.New()
	require.NoError(t, err)
	tool.WithBaseURL(server.URL).
		WithHTTPClient(server.Client()).
		WithDomains([]string{"wikipedia.org"}, nil)

	assert.Equal(t, tavily.ToolName, tool.Name())
	assert.Contains(t, tool.Description(), "web search")

	expParams := `{
	"properties": {
		"Query": {
			"type": "string",
			"title": "Search Query",
			"description": "The query to search web."
		}
	},
	"type": "object",
	"required": [
		"Query"
	]
}`
	assert.Equal(t, expParams, llmutils.ToJSONIndent(tool.Parameters()))

	def, err := tools.Definition(tool)
	require.NoError(t, err)
	assert.Equal(t, tavily.ToolName, def.Function.Name)

	_, err = tool.Call(ctx, "plain string")
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))

	_, err = tool.Run(ctx, &tavily.SearchRequest{})
	assert.EqualError(t, err, "invalid request: empty query")

	input := &tavily.SearchRequest{Query: "What is capital of France"}
	resp, err := tool.Run(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "What is capital of France", lastReq.Query)
	assert.Equal(t, "basic", lastReq.SearchDepth)
	assert.Equal(t, []string{"wikipedia.org"}, lastReq.IncludeDomains)

	exp := `ANSWER: Paris
- URL: https://example.com
  TITLE: Test Result
  SCORE: 0.900000
  CONTENT: Test content
`
	assert.Equal(t, exp, resp.String())

	out, err := tool.Call(ctx, llmutils.ToJSON(input))
	require.NoError(t, err)
	assert.Contains(t, out, `"answer":"Paris"`)
	assert.Contains(t, out, `"url":"https://example.com"`)
}
