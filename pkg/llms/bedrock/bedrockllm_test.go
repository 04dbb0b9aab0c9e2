package bedrock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	modelID string
	body    []byte
	resp    string
	err     error
}

func (f *fakeAPI) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.modelID = aws.ToString(in.ModelId)
	f.body = in.Body
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.resp)}, nil
}

func (f *fakeAPI) InvokeModelWithResponseStream(context.Context, *bedrockruntime.InvokeModelWithResponseStreamInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error) {
	return nil, errors.New("not supported")
}

func Test_ModelProvider(t *testing.T) {
	for id, exp := range map[string]string{
		"anthropic.claude-3-sonnet-20240229-v1:0":    "anthropic",
		"us.anthropic.claude-3-5-sonnet-20241022-v2": "anthropic",
		"eu.anthropic.claude-3-haiku-20240307-v1:0":  "anthropic",
		"amazon.titan-text-premier-v1:0":             "amazon",
		"us.meta.llama3-2-11b-instruct-v1:0":         "meta",
		"anthropic":                                  "anthropic",
	} {
		assert.Equal(t, exp, ModelProvider(id), id)
	}
}

func Test_GenerateContent(t *testing.T) {
	api := &fakeAPI{resp: `{
		"id": "m1",
		"content": [
			{"type": "text", "text": "adding"},
			{"type": "tool_use", "id": "t1", "name": "add", "input": {"a": 1}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 4, "output_tokens": 6}
	}`}
	ctx := context.Background()
	m, err := New(ctx, WithClient(api))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, m.GetName())
	assert.Equal(t, llms.ProviderBedrock, m.GetProviderType())

	call := llms.ToolCall{ID: "t0", Type: "function", FunctionCall: &llms.FunctionCall{Name: "add", Arguments: `{"a":0}`}}
	resp, err := m.GenerateContent(ctx, []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "sys"),
		llms.MessageFromTextParts(llms.RoleHuman, "add"),
		llms.MessageFromToolCalls(llms.RoleAI, call),
		llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "t0", Name: "add", Content: "0"}),
		llms.MessageFromTextParts(llms.RoleHuman, "again"),
	}, llms.WithTools([]llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "add"}}}))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, api.modelID)

	require.Len(t, resp.Choices, 1)
	c := resp.Choices[0]
	assert.Equal(t, "adding", c.Content)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "t1", c.ToolCalls[0].ID)
	assert.JSONEq(t, `{"a":1}`, c.ToolCalls[0].FunctionCall.Arguments)
	assert.EqualValues(t, 10, c.GenerationInfo["TotalTokens"])

	var req request
	require.NoError(t, json.Unmarshal(api.body, &req))
	assert.Equal(t, anthropicVersion, req.AnthropicVersion)
	assert.Equal(t, defaultMaxTokens, req.MaxTokens)
	assert.Equal(t, "sys", req.System)
	require.Len(t, req.Tools, 1)
	// tool result and the following human text are merged into one user turn
	require.Len(t, req.Messages, 3)
	assert.Equal(t, roleUser, req.Messages[2].Role)
	assert.Len(t, req.Messages[2].Content, 2)
}

func Test_GenerateContent_Errors(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{}
	m, err := New(ctx, WithClient(api), WithModel("amazon.titan-text-lite-v1"))
	require.NoError(t, err)

	msgs := []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")}
	_, err = m.GenerateContent(ctx, msgs)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)

	api.err = errors.New("throttled")
	_, err = m.GenerateContent(ctx, msgs, llms.WithModel("anthropic.claude-v2"))
	assert.EqualError(t, err, "bedrock: failed to invoke model: throttled")

	api.err = nil
	api.resp = `{"content": [], "stop_reason": "end_turn"}`
	_, err = m.GenerateContent(ctx, msgs, llms.WithModel("anthropic.claude-v2"))
	assert.EqualError(t, err, "bedrock: no results")

	_, err = m.GenerateContent(ctx, []llms.Message{llms.MessageFromTextParts("robot", "x")}, llms.WithModel("anthropic.claude-v2"))
	assert.EqualError(t, err, `bedrock: role "robot" not supported`)
}
