// Package agent builds the ReAct graph: llm_call and tool_node in a loop
// until the model answers without tool calls.
package agent

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/graph"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/graph", "agent")

const (
	// NodeLLMCall asks the model for the next message.
	NodeLLMCall = "llm_call"
	// NodeTools runs the tool calls of the last message.
	NodeTools = "tool_node"

	// DefaultSystemPrompt is prepended to the messages of every model call.
	DefaultSystemPrompt = "You are a helpful assistant"
	// DefaultName is the graph name used in metrics.
	DefaultName = "react_agent"
)

// State is the state of the agent graph.
type State struct {
	Messages []llms.Message
	LLMCalls int
}

// Reduce appends the update messages and takes the update LLMCalls when set.
func Reduce(state, update State) State {
	res := State{
		Messages: append(slices.Clone(state.Messages), update.Messages...),
		LLMCalls: state.LLMCalls,
	}
	if update.LLMCalls != 0 {
		res.LLMCalls = update.LLMCalls
	}
	return res
}

// Option configures the agent.
type Option func(*Agent)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// WithName sets the graph name.
func WithName(name string) Option {
	return func(a *Agent) {
		a.name = name
	}
}

// WithRecursionLimit sets the number of node executions allowed per Invoke.
func WithRecursionLimit(n int) Option {
	return func(a *Agent) {
		a.graphOpts = append(a.graphOpts, graph.WithRecursionLimit(n))
	}
}

// WithStepCallback sets the function called before each node execution.
func WithStepCallback(fn func(step int, node string)) Option {
	return func(a *Agent) {
		a.graphOpts = append(a.graphOpts, graph.WithStepCallback(fn))
	}
}

// WithCallOptions sets extra options of the model calls.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(a *Agent) {
		a.callOpts = append(a.callOpts, opts...)
	}
}

// Agent is the compiled ReAct graph.
type Agent struct {
	model        llms.Model
	tools        *tools.Registry
	name         string
	systemPrompt string
	callOpts     []llms.CallOption
	graphOpts    []graph.Option

	graph *graph.Graph[State]
}

// New binds the tools to the model and compiles the graph.
func New(model llms.Model, list []tools.ITool, opts ...Option) (*Agent, error) {
	reg, err := tools.NewRegistry(list...)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		model: model,
		tools: reg,
		name:  DefaultName,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.systemPrompt = values.StringsCoalesce(a.systemPrompt, DefaultSystemPrompt)

	if reg.Len() > 0 {
		if !model.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, errors.Newf("agent %s: the LLM does not support function calling", a.name)
		}
		a.callOpts = append(a.callOpts, llms.WithTools(reg.Definitions()))
	}

	a.graph, err = graph.NewStateGraph(a.name, Reduce).
		AddNode(NodeLLMCall, a.llmCall).
		AddNode(NodeTools, a.toolNode).
		AddEdge(graph.START, NodeLLMCall).
		AddConditionalEdges(NodeLLMCall, ShouldContinue, NodeTools, graph.END).
		AddEdge(NodeTools, NodeLLMCall).
		Compile(a.graphOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Graph returns the compiled graph.
func (a *Agent) Graph() *graph.Graph[State] {
	return a.graph
}

// Tools returns the bound tools.
func (a *Agent) Tools() []tools.ITool {
	return a.tools.Tools()
}

// Invoke runs the graph with the messages.
func (a *Agent) Invoke(ctx context.Context, messages ...llms.Message) (State, error) {
	return a.graph.Invoke(ctx, State{Messages: messages})
}

// Run runs the graph with the query as a human message.
func (a *Agent) Run(ctx context.Context, query string) (State, error) {
	return a.Invoke(ctx, llms.MessageFromTextParts(llms.RoleHuman, query))
}

// ShouldContinue routes to the tool node when the last message requests tools.
func ShouldContinue(_ context.Context, state State) (string, error) {
	if n := len(state.Messages); n > 0 && state.Messages[n-1].HasToolCalls() {
		return NodeTools, nil
	}
	return graph.END, nil
}

func (a *Agent) llmCall(ctx context.Context, state State) (State, error) {
	messages := make([]llms.Message, 0, len(state.Messages)+1)
	messages = append(messages, llms.MessageFromTextParts(llms.RoleSystem, a.systemPrompt))
	messages = append(messages, state.Messages...)

	modelName := a.model.GetName()
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(messages)), a.name, modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(llmutils.CountMessagesContentSize(messages)), a.name, modelName)

	resp, err := a.model.GenerateContent(ctx, messages, a.callOpts...)
	if err != nil {
		return State{}, errors.Wrap(err, "failed to generate content from LLM")
	}

	metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), a.name, modelName)
	in, out, total := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(in), a.name, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(out), a.name, modelName)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(total), a.name, modelName)

	if len(resp.Choices) == 0 {
		return State{}, errors.Newf("agent %s: LLM returned empty response", a.name)
	}
	return State{
		Messages: []llms.Message{AIMessage(resp.Choices[0])},
		LLMCalls: state.LLMCalls + 1,
	}, nil
}

// AIMessage converts the choice to a message with the text and tool calls.
// Tool calls without ID get "<name>_<index>".
func AIMessage(choice *llms.ContentChoice) llms.Message {
	msg := llms.Message{Role: llms.RoleAI}
	if choice.Content != "" || len(choice.ToolCalls) == 0 {
		msg.Parts = append(msg.Parts, llms.TextPart(choice.Content))
	}
	for i, tc := range choice.ToolCalls {
		fc := llms.FunctionCall{}
		if tc.FunctionCall != nil {
			fc = *tc.FunctionCall
		}
		msg.Parts = append(msg.Parts, llms.ToolCall{
			ID:           values.StringsCoalesce(tc.ID, fmt.Sprintf("%s_%d", fc.Name, i)),
			Type:         values.StringsCoalesce(tc.Type, "function"),
			FunctionCall: &fc,
		})
	}
	return msg
}

func (a *Agent) toolNode(ctx context.Context, state State) (State, error) {
	var calls []llms.ToolCall
	if n := len(state.Messages); n > 0 {
		calls = state.Messages[n-1].ToolCalls()
	}

	var update State
	for _, tc := range calls {
		fc := llms.FunctionCall{}
		if tc.FunctionCall != nil {
			fc = *tc.FunctionCall
		}
		update.Messages = append(update.Messages, llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: tc.ID,
			Name:       fc.Name,
			Content:    a.observe(ctx, fc.Name, fc.Arguments),
		}))
	}
	return update, nil
}

func (a *Agent) observe(ctx context.Context, name, args string) string {
	tool := a.tools.Get(name)
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		return fmt.Sprintf("Tool `%s` not found. Available tools: %s", name, strings.Join(tools.Names(a.tools.Tools()...), ", "))
	}

	started := time.Now()
	res, err := tool.Call(ctx, args)
	metricskey.PerfToolCall.MeasureSince(started, name)
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", a.name,
			"status", "tool_call_failed",
			"tool", name,
			"err", err.Error(),
		)
		return fmt.Sprintf("Tool call failed: %s", err.Error())
	}
	metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	return res
}
