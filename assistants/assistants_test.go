package assistants_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/mocks/mockllms"
	"github.com/effective-security/mcpagent/mocks/mocktools"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llms/fake"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/mcpagent/store"
	"github.com/effective-security/mcpagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var systemPrompt = prompts.NewPromptTemplate("You are helpful and friendly AI assistant.", []string{})

type addInput struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

type addOutput struct {
	Result int64 `json:"result"`
}

func chatCtx() context.Context {
	return chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("", ""))
}

func testTools(t *testing.T) []tools.ITool {
	add, err := tools.NewFunc("add", "Add two numbers", func(_ context.Context, in *addInput) (*addOutput, error) {
		return &addOutput{Result: in.A + in.B}, nil
	})
	require.NoError(t, err)
	fail, err := tools.NewFunc("fail", "Always fails", func(_ context.Context, _ *addInput) (*addOutput, error) {
		return nil, errors.New("boom")
	})
	require.NoError(t, err)
	return []tools.ITool{add, fail}
}

func toolResponses(m llms.Message) []llms.ToolCallResponse {
	var res []llms.ToolCallResponse
	for _, p := range m.Parts {
		if tr, ok := p.(llms.ToolCallResponse); ok {
			res = append(res, tr)
		}
	}
	return res
}

func Test_Assistant_BuilderMethods(t *testing.T) {
	llm := fake.New(nil)
	sp := prompts.NewPromptTemplate("Hello {{.name}}", []string{"name"})
	a := assistants.NewAssistant(llm, sp).
		WithName("TestAssistant").
		WithDescription("Test Description").
		WithTools(testTools(t)...)

	assert.Equal(t, "TestAssistant", a.Name())
	assert.Equal(t, "Test Description", a.Description())
	assert.Len(t, a.GetTools(), 2)
	assert.Equal(t, []string{"name"}, a.GetPromptInputVariables())
	assert.Empty(t, a.LastRunMessages())

	// existing tools are not replaced
	a.WithTools(testTools(t)[0])
	assert.Len(t, a.GetTools(), 2)

	_, err := a.GetSystemPrompt(context.Background(), "", nil)
	require.Error(t, err)

	s, err := a.GetSystemPrompt(context.Background(), "", map[string]any{"name": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Bob", s)

	a.WithPromptInputProvider(func(_ context.Context, input string) (map[string]any, error) {
		return map[string]any{"name": input}, nil
	})
	s, err = a.GetSystemPrompt(context.Background(), "Alice", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello Alice", s)

	a.WithPromptInputProvider(func(context.Context, string) (map[string]any, error) {
		return nil, errors.New("no inputs")
	})
	_, err = a.GetSystemPrompt(context.Background(), "Alice", nil)
	assert.EqualError(t, err, "failed to get prompt inputs: no inputs")
}

func Test_Call_InvalidChatContext(t *testing.T) {
	a := assistants.NewAssistant(fake.New([]*llms.ContentResponse{fake.TextResponse("hi")}), systemPrompt)
	_, err := a.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrInvalidChatContext))
}

func Test_Call_TextAnswer(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{fake.TextResponse("Hello there!")})
	a := assistants.NewAssistant(llm, systemPrompt, assistants.WithTemperature(0.2))

	res, err := a.Run(chatCtx(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", res)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, llms.RoleSystem, calls[0][0].Role)
	assert.Equal(t, "You are helpful and friendly AI assistant.\n", calls[0][0].GetContent())
	assert.Equal(t, llms.RoleHuman, calls[0][1].Role)

	opts := llm.CallOptions()
	require.Len(t, opts, 1)
	assert.Empty(t, opts[0].Tools)
	assert.Equal(t, 0.2, opts[0].Temperature)

	msgs := a.LastRunMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, llms.RoleAI, msgs[1].Role)
	assert.Equal(t, "Hello there!\n", msgs[1].GetContent())
}

func Test_Call_ExamplesAndPromptInputs(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{fake.TextResponse("ok")})
	sp := prompts.NewPromptTemplate("You help {{.name}}.", []string{"name"})
	a := assistants.NewAssistant(llm, sp,
		assistants.WithPromptInput(map[string]any{"name": "Alice"}),
		assistants.WithExamples(chatmodel.FewShotExamples{{Prompt: "2+2?", Completion: "4"}}),
	)

	_, err := a.Call(chatCtx(), &assistants.CallInput{
		Input:        "Hi",
		PromptInputs: map[string]any{"name": "Bob"},
		Messages:     []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "extra")},
	})
	require.NoError(t, err)

	calls := llm.Calls()
	require.Len(t, calls, 1)
	msgs := calls[0]
	require.Len(t, msgs, 5)
	assert.Equal(t, "You help Bob.\n", msgs[0].GetContent())
	assert.Equal(t, llms.RoleHuman, msgs[1].Role)
	assert.Equal(t, llms.RoleAI, msgs[2].Role)
	assert.Equal(t, "Hi", strings.TrimSpace(msgs[3].GetContent()))
	assert.Equal(t, "extra", strings.TrimSpace(msgs[4].GetContent()))
}

func Test_Call_InputParser(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{fake.TextResponse("ok")})
	a := assistants.NewAssistant(llm, systemPrompt).
		WithInputParser(func(s string) (string, error) {
			return "parsed: " + s, nil
		})
	_, err := a.Run(chatCtx(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "parsed: Hi", strings.TrimSpace(llm.Calls()[0][1].GetContent()))

	a.WithInputParser(func(string) (string, error) {
		return "", errors.New("rejected")
	})
	_, err = a.Run(chatCtx(), "Hi")
	assert.EqualError(t, err, "failed to parse input: rejected")
}

func Test_Call_ToolCallsInOrder(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(
			fake.Call("add", `{"a":1,"b":2}`),
			fake.Call("missing", `{}`),
			fake.Call("FAIL", `{"a":1,"b":2}`),
		),
		fake.TextResponse("The answer is 3"),
	})
	a := assistants.NewAssistant(llm, systemPrompt).WithTools(testTools(t)...)

	res, err := a.Run(chatCtx(), "What is 1+2?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 3", res)

	opts := llm.CallOptions()
	require.Len(t, opts, 2)
	require.Len(t, opts[0].Tools, 2)
	assert.Equal(t, "add", opts[0].Tools[0].Function.Name)

	calls := llm.Calls()
	require.Len(t, calls, 2)
	second := calls[1]
	// system, human, ai with calls, 3 tool responses
	require.Len(t, second, 6)
	assert.Equal(t, llms.RoleAI, second[2].Role)
	require.Len(t, second[2].ToolCalls(), 3)

	var got []llms.ToolCallResponse
	for _, m := range second[3:] {
		assert.Equal(t, llms.RoleTool, m.Role)
		got = append(got, toolResponses(m)...)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "call_1", got[0].ToolCallID)
	assert.Equal(t, `{"result":3}`, got[0].Content)
	assert.Equal(t, "call_2", got[1].ToolCallID)
	assert.Equal(t, "Tool `missing` not found. Please check the tool name and try again with exact match. Available tools: add, fail", got[1].Content)
	assert.Equal(t, "call_3", got[2].ToolCallID)
	assert.Equal(t, "Tool call failed: boom", got[2].Content)

	msgs := a.LastRunMessages()
	require.Len(t, msgs, 6)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, llms.RoleAI, msgs[5].Role)
}

func Test_Call_EmptyToolCallID(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{
		{Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{
				{FunctionCall: &llms.FunctionCall{Name: "add", Arguments: `{"a":2,"b":2}`}},
				{FunctionCall: &llms.FunctionCall{Name: "add", Arguments: `{"a":3,"b":3}`}},
			},
		}}},
		fake.TextResponse("done"),
	})
	a := assistants.NewAssistant(llm, systemPrompt).WithTools(testTools(t)...)

	_, err := a.Run(chatCtx(), "add")
	require.NoError(t, err)

	second := llm.Calls()[1]
	calls := second[2].ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "add_0", calls[0].ID)
	assert.Equal(t, "function", calls[0].Type)
	assert.Equal(t, "add_1", calls[1].ID)

	resp := toolResponses(second[3])
	require.Len(t, resp, 1)
	assert.Equal(t, "add_0", resp[0].ToolCallID)
	assert.Equal(t, `{"result":4}`, resp[0].Content)
	resp = toolResponses(second[4])
	require.Len(t, resp, 1)
	assert.Equal(t, "add_1", resp[0].ToolCallID)
	assert.Equal(t, `{"result":6}`, resp[0].Content)
}

func Test_Call_FailedParseToolInput(t *testing.T) {
	ctrl := gomock.NewController(t)

	tool := mocktools.NewMockITool(ctrl)
	tool.EXPECT().Name().Return("search").AnyTimes()
	tool.EXPECT().Description().Return("Search the web").AnyTimes()
	tool.EXPECT().Parameters().Return(schema.MustFromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string"},
		},
	})).AnyTimes()
	tool.EXPECT().Call(gomock.Any(), "{bad").Return("", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)).Times(1)

	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("search", "{bad")),
		fake.TextResponse("sorry"),
	})
	a := assistants.NewAssistant(llm, systemPrompt).WithTools(tool)

	_, err := a.Run(chatCtx(), "search")
	require.NoError(t, err)

	resp := toolResponses(llm.Calls()[1][3])
	require.Len(t, resp, 1)
	assert.Equal(t, "Failed to unmarshal input for tool `search`, check the JSON schema and try again.", resp[0].Content)
}

func Test_Call_ParallelToolCalls(t *testing.T) {
	slow, err := tools.NewFunc("slow", "Sleeps", func(ctx context.Context, in *addInput) (*addOutput, error) {
		time.Sleep(200 * time.Millisecond)
		return &addOutput{Result: in.A}, nil
	})
	require.NoError(t, err)

	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(
			fake.Call("slow", `{"a":1}`),
			fake.Call("slow", `{"a":2}`),
			fake.Call("slow", `{"a":3}`),
		),
		fake.TextResponse("done"),
	})
	a := assistants.NewAssistant(llm, systemPrompt).WithTools(slow)

	started := time.Now()
	_, err = a.Run(chatCtx(), "go")
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 550*time.Millisecond, "tools should execute in parallel")

	second := llm.Calls()[1]
	for i, m := range second[3:] {
		resp := toolResponses(m)
		require.Len(t, resp, 1)
		assert.Equal(t, fmt.Sprintf(`{"result":%d}`, i+1), resp[0].Content)
	}
}

func Test_Call_MaxSteps(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("add", `{"a":1,"b":1}`)),
	}, fake.WithRepeatLast())
	a := assistants.NewAssistant(llm, systemPrompt, assistants.WithMaxSteps(2)).WithTools(testTools(t)...)

	_, err := a.Run(chatCtx(), "loop")
	require.Error(t, err)
	assert.True(t, errors.Is(err, assistants.ErrMaxStepsExceeded))
	assert.Len(t, llm.Calls(), 2)

	// the limit can be raised per call
	llm.Reset()
	_, err = a.Call(chatCtx(), &assistants.CallInput{
		Input:   "loop",
		Options: []assistants.Option{assistants.WithMaxSteps(3)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, assistants.ErrMaxStepsExceeded))
	assert.Len(t, llm.Calls(), 3)
}

func Test_Call_MaxToolCalls(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("add", `{"a":1,"b":1}`)),
	}, fake.WithRepeatLast())
	a := assistants.NewAssistant(llm, systemPrompt, assistants.WithMaxToolCalls(2)).WithTools(testTools(t)...)

	_, err := a.Run(chatCtx(), "loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the tool calls limit is exceeded")
	assert.Len(t, llm.Calls(), 2)
}

func Test_Call_TooManyNotFound(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(
			fake.Call("a", `{}`),
			fake.Call("b", `{}`),
			fake.Call("c", `{}`),
			fake.Call("d", `{}`),
		),
		fake.TextResponse("never"),
	})
	a := assistants.NewAssistant(llm, systemPrompt).WithTools(testTools(t)...)

	_, err := a.Run(chatCtx(), "call unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the number of not found tools is exceeded")
	assert.Len(t, llm.Calls(), 1)
}

func Test_Call_EmptyChoices(t *testing.T) {
	empty := &llms.ContentResponse{}

	llm := fake.New([]*llms.ContentResponse{empty, empty, fake.TextResponse("finally")})
	a := assistants.NewAssistant(llm, systemPrompt)
	res, err := a.Run(chatCtx(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "finally", res)
	assert.Len(t, llm.Calls(), 3)

	llm = fake.New([]*llms.ContentResponse{empty}, fake.WithRepeatLast())
	a = assistants.NewAssistant(llm, systemPrompt)
	_, err = a.Run(chatCtx(), "hi")
	assert.EqualError(t, err, "assistant Generic Assistant: LLM returned empty response after 3 retries")
	assert.Len(t, llm.Calls(), assistants.DefaultMaxRetries)
}

func Test_Call_MultipleChoices(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{{
		Choices: []*llms.ContentChoice{{Content: "first"}, {Content: "second"}},
	}})
	a := assistants.NewAssistant(llm, systemPrompt)
	res, err := a.Run(chatCtx(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond", res)
}

func Test_Call_Limits(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{fake.TextResponse("hi")})

	a := assistants.NewAssistant(llm, systemPrompt, assistants.WithMaxMessages(2))
	_, err := a.Run(chatCtx(), "hi")
	assert.EqualError(t, err, "assistant Generic Assistant: the messages count exceeded limit")

	a = assistants.NewAssistant(llm, systemPrompt, assistants.WithMaxLength(10))
	_, err = a.Run(chatCtx(), "hi")
	assert.EqualError(t, err, "assistant Generic Assistant: the content size exceeded limit")

	assert.Empty(t, llm.Calls())
}

func Test_Call_FunctionCallingNotSupported(t *testing.T) {
	llm := fake.New([]*llms.ContentResponse{fake.TextResponse("hi")}, fake.WithProviderType(llms.ProviderPerplexity))

	a := assistants.NewAssistant(llm, systemPrompt).WithTools(testTools(t)...)
	_, err := a.Run(chatCtx(), "hi")
	assert.EqualError(t, err, "assistant Generic Assistant: the LLM does not support function calling")
	assert.Empty(t, llm.Calls())

	// no tools, no capability required
	a = assistants.NewAssistant(llm, systemPrompt)
	res, err := a.Run(chatCtx(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", res)
}

func Test_Call_GenerateContentError(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := mockllms.NewMockModel(ctrl)
	llm.EXPECT().GetName().Return("mock").AnyTimes()
	llm.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	llm.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("rate limited")).Times(1)

	a := assistants.NewAssistant(llm, systemPrompt).WithTools(testTools(t)...)
	_, err := a.Run(chatCtx(), "hi")
	assert.EqualError(t, err, "failed to generate content from LLM: rate limited")
}

func Test_Call_Store(t *testing.T) {
	ctx := chatCtx()
	st := store.NewMemoryStore()

	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("add", `{"a":1,"b":2}`)),
		fake.TextResponse("3"),
		fake.TextResponse("you asked about 1+2"),
	})
	a := assistants.NewAssistant(llm, systemPrompt, assistants.WithStore(st)).WithTools(testTools(t)...)

	_, err := a.Run(ctx, "1+2?")
	require.NoError(t, err)

	saved, err := st.Messages(ctx)
	require.NoError(t, err)
	// human, ai with calls, tool, ai
	require.Len(t, saved, 4)
	assert.Equal(t, llms.RoleTool, saved[2].Role)

	_, err = a.Run(ctx, "what did I ask?")
	require.NoError(t, err)
	calls := llm.Calls()
	require.Len(t, calls, 3)
	// system, history, human
	assert.Len(t, calls[2], 6)

	saved, err = st.Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 6)
}

func Test_Call_StoreTrimmedHistory(t *testing.T) {
	ctx := chatCtx()
	st := store.NewMemoryStore(store.WithMaxMessages(2))

	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("add", `{"a":2,"b":3}`)),
		fake.TextResponse("5"),
		fake.TextResponse("you are welcome"),
	})
	a := assistants.NewAssistant(llm, systemPrompt, assistants.WithStore(st)).WithTools(testTools(t)...)

	_, err := a.Run(ctx, "2+3?")
	require.NoError(t, err)
	_, err = a.Run(ctx, "thanks")
	require.NoError(t, err)

	calls := llm.Calls()
	require.Len(t, calls, 3)
	last := calls[2]
	require.GreaterOrEqual(t, len(last), 2)
	assert.Equal(t, llms.RoleSystem, last[0].Role)
	assert.Equal(t, llms.RoleHuman, last[1].Role)
	for _, m := range last {
		assert.NotEqual(t, llms.RoleTool, m.Role)
	}
}

func Test_Call_StoreSkipToolHistory(t *testing.T) {
	ctx := chatCtx()
	st := store.NewMemoryStore()

	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("add", `{"a":1,"b":2}`)),
		fake.TextResponse("3"),
	})
	a := assistants.NewAssistant(llm, systemPrompt,
		assistants.WithStore(st),
		assistants.WithSkipToolHistory(true),
	).WithTools(testTools(t)...)

	_, err := a.Run(ctx, "1+2?")
	require.NoError(t, err)

	saved, err := st.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, llms.RoleHuman, saved[0].Role)
	assert.Equal(t, llms.RoleAI, saved[1].Role)
	assert.Equal(t, "3\n", saved[1].GetContent())

	// skipped history is not saved at all
	llm.Reset()
	_, err = a.Call(ctx, &assistants.CallInput{
		Input:   "again",
		Options: []assistants.Option{assistants.WithSkipMessageHistory(true)},
	})
	require.NoError(t, err)
	saved, err = st.Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

type recorder struct {
	lock   sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) OnAssistantStart(context.Context, assistants.IAssistant, string) {
	r.add("start")
}

func (r *recorder) OnAssistantEnd(_ context.Context, _ assistants.IAssistant, _ string, _ *llms.ContentResponse, _ []llms.Message) {
	r.add("end")
}

func (r *recorder) OnAssistantError(_ context.Context, _ assistants.IAssistant, _ string, _ error, _ []llms.Message) {
	r.add("error")
}

func (r *recorder) OnAssistantLLMCallStart(_ context.Context, _ assistants.IAssistant, _ llms.Model, _ []llms.Message) {
	r.add("llm_start")
}

func (r *recorder) OnAssistantLLMCallEnd(_ context.Context, _ assistants.IAssistant, _ llms.Model, _ *llms.ContentResponse) {
	r.add("llm_end")
}

func (r *recorder) OnToolNotFound(_ context.Context, _ assistants.IAssistant, tool string) {
	r.add("not_found:" + tool)
}

func (r *recorder) OnToolStart(_ context.Context, tool tools.ITool, _ string, _ string) {
	r.add("tool_start:" + tool.Name())
}

func (r *recorder) OnToolEnd(_ context.Context, tool tools.ITool, _ string, _ string, _ string) {
	r.add("tool_end:" + tool.Name())
}

func (r *recorder) OnToolError(_ context.Context, tool tools.ITool, _ string, _ string, _ error) {
	r.add("tool_error:" + tool.Name())
}

func Test_Call_Callbacks(t *testing.T) {
	rec := &recorder{}
	llm := fake.New([]*llms.ContentResponse{
		fake.ToolCallResponse(fake.Call("add", `{"a":1,"b":2}`)),
		fake.ToolCallResponse(fake.Call("fail", `{}`)),
		fake.ToolCallResponse(fake.Call("nope", `{}`)),
		fake.TextResponse("done"),
	})
	a := assistants.NewAssistant(llm, systemPrompt, assistants.WithCallback(rec)).WithTools(testTools(t)...)

	_, err := a.Run(chatCtx(), "go")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"start",
		"llm_start", "llm_end", "tool_start:add", "tool_end:add",
		"llm_start", "llm_end", "tool_start:fail", "tool_error:fail",
		"llm_start", "llm_end", "not_found:nope",
		"llm_start", "llm_end",
		"end",
	}, rec.events)

	rec.events = nil
	_, err = a.Run(context.Background(), "go")
	require.Error(t, err)
	assert.Equal(t, []string{"start", "error"}, rec.events)
}

func Test_GetDescriptions(t *testing.T) {
	a1 := assistants.NewAssistant(fake.New(nil), systemPrompt).WithName("weather").WithDescription("Weather expert")
	a2 := assistants.NewAssistant(fake.New(nil), systemPrompt).WithName("math").WithDescription("Math expert")

	assert.Equal(t, "- `weather`: Weather expert\n- `math`: Math expert\n", assistants.GetDescriptions(a1, a2))

	m := assistants.MapAssistants(a1, a2)
	assert.Len(t, m, 2)
	assert.Equal(t, a2, m["math"])
}
