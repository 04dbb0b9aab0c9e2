package assistants_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llms/fake"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_AssistantTool(t *testing.T) {
	expertLLM := fake.New([]*llms.ContentResponse{fake.TextResponse("It is sunny")}, fake.WithRepeatLast())
	expert := assistants.NewAssistant(expertLLM, systemPrompt).
		WithName("weather_expert").
		WithDescription("Answers weather questions")

	tool, err := assistants.NewAssistantTool(expert)
	require.NoError(t, err)
	assert.Equal(t, "weather_expert", tool.Name())
	assert.Equal(t, "Answers weather questions", tool.Description())
	assert.Contains(t, llmutils.ToJSON(tool.Parameters()), `"input"`)

	tool.WithName("expert").WithDescription("Expert")
	assert.Equal(t, "expert", tool.Name())
	assert.Equal(t, "Expert", tool.Description())

	ctx := chatCtx()
	res, err := tool.Call(ctx, `{"input":"weather in Sacramento?"}`)
	require.NoError(t, err)
	assert.Equal(t, "It is sunny", res)

	res, err = tool.CallAssistant(ctx, "plain text question")
	require.NoError(t, err)
	assert.Equal(t, "It is sunny", res)

	calls := expertLLM.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "weather in Sacramento?\n", calls[0][1].GetContent())
	assert.Equal(t, "plain text question\n", calls[1][1].GetContent())

	_, err = tool.Call(ctx, `{}`)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))
}

func Test_AssistantTool_Nested(t *testing.T) {
	expertLLM := fake.New([]*llms.ContentResponse{fake.TextResponse("42")})
	expert := assistants.NewAssistant(expertLLM, systemPrompt).WithName("expert")
	tool, err := assistants.NewAssistantTool(expert)
	require.NoError(t, err)

	mainLLM := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("expert", `{"input":"meaning of life?"}`)),
		fake.TextResponse("The expert says 42"),
	})
	main := assistants.NewAssistant(mainLLM, systemPrompt).WithTools(tool)

	res, err := main.Run(chatCtx(), "ask the expert")
	require.NoError(t, err)
	assert.Equal(t, "The expert says 42", res)

	resp := toolResponses(mainLLM.Calls()[1][3])
	require.Len(t, resp, 1)
	assert.Equal(t, "42", resp[0].Content)
}

func Test_ResponseText(t *testing.T) {
	assert.Empty(t, assistants.ResponseText(nil))
	assert.Equal(t, "a", assistants.ResponseText(fake.TextResponse("a")))
}
