package callbacks_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/callbacks"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llms/fake"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "callbacks_test")

type echoInput struct {
	Text string `json:"text"`
}

func newAssistant(t *testing.T, cb assistants.Callback) *assistants.Assistant {
	echo, err := tools.NewFunc("echo", "Echo the text", func(_ context.Context, in *echoInput) (*string, error) {
		return &in.Text, nil
	})
	require.NoError(t, err)
	fail, err := tools.NewFunc("fail", "Fails", func(_ context.Context, _ *echoInput) (*string, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)

	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(
			fake.Call("echo", `{"text":"hello"}`),
			fake.Call("fail", `{}`),
			fake.Call("unknown", `{}`),
		),
		fake.TextResponse("all done"),
	})
	return assistants.NewAssistant(llm, prompts.NewPromptTemplate("You are a test.", nil),
		assistants.WithCallback(cb),
	).WithName("tester").WithTools(echo, fail)
}

func chatCtx() context.Context {
	return chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("t1", "c1"))
}

func Test_Printer(t *testing.T) {
	var buf bytes.Buffer
	a := newAssistant(t, callbacks.NewPrinter(&buf, callbacks.ModeVerbose))

	_, err := a.Run(chatCtx(), "say hello")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Assistant Start: tester\nInput: say hello\n")
	assert.Contains(t, out, "LLM Call: tester: fake model, 2 messages\n")
	assert.Contains(t, out, "Tool Start: echo (tester)\nInput: {\"text\":\"hello\"}\n")
	assert.Contains(t, out, "Tool End: echo (tester)\nOutput: hello\n")
	assert.Contains(t, out, "Tool Error: fail (tester): boom\n")
	assert.Contains(t, out, "Tool Not Found: unknown (tester)\n")
	assert.Contains(t, out, "all done")

	buf.Reset()
	_, err = a.Run(context.Background(), "no chat")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "Assistant Error: tester: invalid chat context")
}

func Test_Usage(t *testing.T) {
	callbacks.TimeNowFn = func() time.Time {
		return time.Date(2025, 7, 4, 15, 4, 5, 0, time.UTC)
	}
	defer func() { callbacks.TimeNowFn = time.Now }()

	usage := callbacks.NewUsage(callbacks.ModeDefault)
	a := newAssistant(t, usage)
	ctx := chatCtx()

	// not started, ignored
	_, err := a.Run(ctx, "say hello")
	require.NoError(t, err)
	stats, transcript := usage.End(ctx)
	assert.Nil(t, stats)
	assert.Nil(t, transcript)

	a = newAssistant(t, usage)
	require.NoError(t, usage.Begin(ctx))
	_, err = a.Run(ctx, "say hello")
	require.NoError(t, err)

	stats, transcript = usage.End(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, "t1", stats.TenantID)
	assert.Equal(t, "c1", stats.ChatID)
	assert.Equal(t, uint32(1), stats.AssistantCalls)
	assert.Equal(t, uint32(0), stats.AssistantFailed)
	assert.Equal(t, uint32(2), stats.LLMCalls)
	// 2 messages in the first call, 6 in the second
	assert.Equal(t, uint32(8), stats.MessagesSent)
	assert.Equal(t, uint32(2), stats.ToolCalls)
	assert.Equal(t, uint32(1), stats.ToolCallsSucceeded)
	assert.Equal(t, uint32(1), stats.ToolCallsFailed)
	assert.Equal(t, uint32(1), stats.ToolNotFound)
	assert.Equal(t, uint64(len("all done")), stats.LLMOutputTokens)
	assert.NotZero(t, stats.LLMBytesOut)

	s := string(transcript)
	assert.Contains(t, s, "2025-07-04 15:04:05 c1 *** Run Started ***\n")
	assert.Contains(t, s, "c1 tester *** Assistant Start *** say hello\n")
	assert.Contains(t, s, "c1 tester echo *** Tool End ***\n")
	assert.Contains(t, s, "c1 tester *** Tool Not Found *** unknown\n")
	assert.Contains(t, s, "*** Run Ended *** assistant calls: 1 (failed 0)")

	assert.Error(t, usage.Begin(context.Background()))
}

func Test_Fanout(t *testing.T) {
	var b1, b2 bytes.Buffer
	usage := callbacks.NewUsage(callbacks.ModeVerbose)
	fan := callbacks.NewFanout(
		callbacks.NewPrinter(&b1, callbacks.ModeDefault),
		nil,
		callbacks.NewNoop(),
		callbacks.NewLogger(logger),
	)
	fan.Add(callbacks.NewPrinter(&b2, callbacks.ModeDefault))
	fan.Add(usage)

	ctx := chatCtx()
	require.NoError(t, usage.Begin(ctx))

	a := newAssistant(t, fan)
	_, err := a.Run(ctx, "say hello")
	require.NoError(t, err)

	assert.Equal(t, b1.String(), b2.String())
	assert.Contains(t, b1.String(), "Tool End: echo (tester)\n")
	assert.NotContains(t, b1.String(), "Output: hello")

	stats, transcript := usage.End(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, uint32(2), stats.LLMCalls)
	assert.Contains(t, string(transcript), "Messages:\n[0] system:\n")
}
