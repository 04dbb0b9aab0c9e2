package llms_test

import (
	"encoding/json"
	"testing"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_MessageFromTextParts(t *testing.T) {
	t.Parallel()
	m := llms.MessageFromTextParts(llms.RoleHuman, "a", "b")
	assert.Equal(t, llms.RoleHuman, m.Role)
	assert.Equal(t, []llms.ContentPart{llms.TextContent{Text: "a"}, llms.TextContent{Text: "b"}}, m.Parts)
	assert.Equal(t, "a\nb\n", m.GetContent())
	assert.False(t, m.HasToolCalls())
}

func Test_MessageFromToolCalls(t *testing.T) {
	t.Parallel()
	fc := &llms.FunctionCall{Name: "get_alerts", Arguments: `{"state":"CA"}`}
	m := llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{ID: "1", Type: "function", FunctionCall: fc})
	require.True(t, m.HasToolCalls())
	calls := m.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_alerts", calls[0].FunctionCall.Name)

	// the message holds a copy
	fc.Name = "changed"
	assert.Equal(t, "get_alerts", m.ToolCalls()[0].FunctionCall.Name)
	assert.Equal(t, "ToolCall: 1 (get_alerts), input: {\"state\":\"CA\"}", calls[0].String())
}

func Test_MessageJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		msg  llms.Message
		js   string
	}{
		{
			name: "text",
			msg:  llms.MessageFromTextParts(llms.RoleHuman, "hello"),
			js:   `{"role":"human","parts":[{"type":"text","text":"hello"}]}`,
		},
		{
			name: "binary",
			msg:  llms.MessageFromParts(llms.RoleHuman, llms.BinaryPart("image/png", []byte{0, 1, 2})),
			js:   `{"role":"human","parts":[{"type":"binary","mime_type":"image/png","data":"AAEC"}]}`,
		},
		{
			name: "tool_call",
			msg: llms.MessageFromToolCalls(llms.RoleAI, llms.ToolCall{
				ID: "c1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "add", Arguments: `{"a":1}`},
			}),
			js: `{"role":"ai","parts":[{"type":"tool_call","id":"c1","call_type":"function","function":{"name":"add","arguments":"{\"a\":1}"}}]}`,
		},
		{
			name: "tool_response",
			msg:  llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{ToolCallID: "c1", Name: "add", Content: "2"}),
			js:   `{"role":"tool","parts":[{"type":"tool_response","tool_call_id":"c1","name":"add","content":"2"}]}`,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			js, err := json.Marshal(tc.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tc.js, string(js))

			var back llms.Message
			require.NoError(t, json.Unmarshal(js, &back))
			assert.Equal(t, tc.msg, back)
		})
	}
}

func Test_MessageJSON_Errors(t *testing.T) {
	t.Parallel()
	var m llms.Message
	err := json.Unmarshal([]byte(`{"role":"ai","parts":[{"type":"video"}]}`), &m)
	assert.EqualError(t, err, `part 0: unknown content type: "video"`)

	err = json.Unmarshal([]byte(`{"role":"ai","parts":[{"type":"tool_call"}]}`), &m)
	assert.EqualError(t, err, "part 0: missing id in tool_call part")
}

func Test_Capabilities(t *testing.T) {
	t.Parallel()
	assert.True(t, llms.ProviderGroq.Supports(llms.CapabilityFunctionCalling))
	assert.True(t, llms.ProviderGoogleAI.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderPerplexity.Supports(llms.CapabilityFunctionCalling))
	assert.False(t, llms.ProviderType("unknown").Supports(llms.CapabilityText))
}

func Test_Options(t *testing.T) {
	t.Parallel()
	opts := llms.NewCallOptions(
		llms.WithModel("m"),
		llms.WithMaxTokens(10),
		llms.WithTemperature(0.1),
		llms.WithTopK(3),
		llms.WithTopP(0.9),
		llms.WithSeed(42),
		llms.WithN(2),
		llms.WithJSONMode(),
		llms.WithStopWords([]string{"x"}),
		llms.WithToolChoice(llms.ToolChoiceAuto),
		llms.WithMetadata(map[string]any{"k": "v"}),
	)
	assert.Equal(t, "m", opts.Model)
	assert.Equal(t, 10, opts.MaxTokens)
	assert.Equal(t, 0.1, opts.Temperature)
	assert.Equal(t, 3, opts.TopK)
	assert.Equal(t, 0.9, opts.TopP)
	assert.Equal(t, 42, opts.Seed)
	assert.Equal(t, 2, opts.N)
	assert.True(t, opts.JSONMode)
	assert.Equal(t, []string{"x"}, opts.StopWords)
	assert.Equal(t, "auto", llms.ToolChoiceName(opts.ToolChoice))
	assert.Equal(t, "get", llms.ToolChoiceName(llms.ToolChoice{Type: "function", Function: &llms.FunctionReference{Name: "get"}}))
}
