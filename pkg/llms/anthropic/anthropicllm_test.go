package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolUseResponse = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5",
	"content": [
		{"type": "text", "text": "let me add"},
		{"type": "tool_use", "id": "t1", "name": "add", "input": {"a": 1, "b": 2}}
	],
	"stop_reason": "tool_use",
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

func Test_New(t *testing.T) {
	t.Setenv(TokenEnvVarName, "")
	_, err := New()
	assert.ErrorIs(t, err, ErrMissingToken)

	m, err := New(WithToken("key"), WithModel("claude-x"))
	require.NoError(t, err)
	assert.Equal(t, "claude-x", m.GetName())
	assert.Equal(t, llms.ProviderAnthropic, m.GetProviderType())
}

func Test_GenerateContent(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolUseResponse))
	}))
	defer srv.Close()

	m, err := New(WithToken("key"), WithBaseURL(srv.URL), WithMaxRetries(0))
	require.NoError(t, err)

	params := &jsonschema.Schema{Type: "object", Required: []string{"a"}}
	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "be brief"),
		llms.MessageFromTextParts(llms.RoleHuman, "add 1 and 2"),
	}
	resp, err := m.GenerateContent(context.Background(), msgs,
		llms.WithTools([]llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "add", Parameters: params}}}),
		llms.WithTemperature(0.5),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	c := resp.Choices[0]
	assert.Equal(t, "let me add", c.Content)
	assert.Equal(t, "tool_use", c.StopReason)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "t1", c.ToolCalls[0].ID)
	assert.Equal(t, "add", c.ToolCalls[0].FunctionCall.Name)
	assert.JSONEq(t, `{"a":1,"b":2}`, c.ToolCalls[0].FunctionCall.Arguments)
	assert.EqualValues(t, 15, c.GenerationInfo["TotalTokens"])

	require.NotNil(t, body)
	assert.Equal(t, DefaultModel, body["model"])
	assert.EqualValues(t, DefaultMaxTokens, body["max_tokens"])
	assert.NotEmpty(t, body["system"])
	assert.Len(t, body["tools"], 1)
	assert.Len(t, body["messages"], 1)
}

func Test_ProcessMessages(t *testing.T) {
	call := llms.ToolCall{ID: "t1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "add", Arguments: `{"a":1}`}}
	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "s1"),
		llms.MessageFromTextParts(llms.RoleSystem, "s2"),
		llms.MessageFromTextParts(llms.RoleHuman, "hi"),
		llms.MessageFromToolCalls(llms.RoleAI, call),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "t1", Name: "add", Content: "1"}),
		{Role: llms.RoleHuman},
	}
	res, system, err := ProcessMessages(msgs)
	require.NoError(t, err)
	assert.Equal(t, "s1\ns2", system)
	assert.Len(t, res, 3)

	_, _, err = ProcessMessages([]llms.Message{llms.MessageFromTextParts(llms.RoleTool, "x")})
	assert.ErrorIs(t, err, ErrInvalidContentType)

	_, _, err = ProcessMessages([]llms.Message{llms.MessageFromTextParts("bogus", "x")})
	assert.ErrorIs(t, err, ErrUnsupportedMessageType)

	_, _, err = ProcessMessages([]llms.Message{
		{Role: llms.RoleHuman, Parts: []llms.ContentPart{llms.BinaryPart("application/pdf", []byte("x"))}},
	})
	assert.ErrorIs(t, err, ErrInvalidContentType)
}

func Test_ToTools(t *testing.T) {
	assert.Nil(t, ToTools(nil))
	res := ToTools([]llms.Tool{
		{Type: "function"},
		{Type: "function", Function: &llms.FunctionDefinition{Name: "x", Description: "d"}},
	})
	require.Len(t, res, 1)
	assert.Equal(t, "x", res[0].OfTool.Name)
}
