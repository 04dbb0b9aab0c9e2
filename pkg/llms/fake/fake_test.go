package fake

import (
	"context"
	"testing"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LLM(t *testing.T) {
	ctx := context.Background()
	m := New([]*llms.ContentResponse{
		ToolCallResponse(Call("add", `{"a":1,"b":2}`), Call("multiply", `{"a":3,"b":4}`)),
		TextResponse("done"),
	}, WithName("scripted"), WithProviderType(llms.ProviderOpenAI))

	assert.Equal(t, "scripted", m.GetName())
	assert.Equal(t, llms.ProviderOpenAI, m.GetProviderType())

	msgs := []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "hi")}
	resp, err := m.GenerateContent(ctx, msgs)
	require.NoError(t, err)
	require.Len(t, resp.Choices[0].ToolCalls, 2)
	assert.Equal(t, "call_1", resp.Choices[0].ToolCalls[0].ID)
	assert.Equal(t, "call_2", resp.Choices[0].ToolCalls[1].ID)

	var streamed string
	resp, err = m.GenerateContent(ctx, msgs, llms.WithStreamingFunc(func(_ context.Context, b []byte) error {
		streamed += string(b)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Choices[0].Content)
	assert.Equal(t, "done", streamed)

	_, err = m.GenerateContent(ctx, msgs)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Len(t, m.Calls(), 3)
	assert.Len(t, m.CallOptions(), 3)

	m.Reset()
	assert.Empty(t, m.Calls())
	resp, err = m.GenerateContent(ctx, msgs)
	require.NoError(t, err)
	assert.Len(t, resp.Choices[0].ToolCalls, 2)
}

func Test_LLM_RepeatLast(t *testing.T) {
	m := New([]*llms.ContentResponse{TextResponse("same")}, WithRepeatLast())
	for range 3 {
		resp, err := m.GenerateContent(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, "same", resp.Choices[0].Content)
	}
	assert.Equal(t, llms.ProviderFake, m.GetProviderType())
}
