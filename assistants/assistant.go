package assistants

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/store"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// ErrMaxStepsExceeded is returned when the run needs more model calls than allowed.
var ErrMaxStepsExceeded = errors.New("max steps exceeded")

// maxNotFoundTools is the number of unknown tools tolerated in one turn.
const maxNotFoundTools = 3

// ProvidePromptInputsFunc returns extra system prompt inputs for the user input.
type ProvidePromptInputsFunc func(ctx context.Context, input string) (map[string]any, error)

// Assistant sends the conversation to the model and executes the tool calls
// it requests until the model produces a final answer.
type Assistant struct {
	LLM llms.Model

	tools *tools.Registry

	cfg         *Config
	name        string
	description string
	sysprompt   prompts.FormatPrompter
	onPrompt    ProvidePromptInputsFunc
	inputParser func(string) (string, error)

	lock        sync.RWMutex
	runMessages []llms.Message
}

var _ IAssistant = (*Assistant)(nil)

// NewAssistant returns an assistant with the model and system prompt.
func NewAssistant(llmModel llms.Model, sysprompt prompts.FormatPrompter, options ...Option) *Assistant {
	return &Assistant{
		cfg:         NewConfig(options...),
		LLM:         llmModel,
		tools:       &tools.Registry{},
		sysprompt:   sysprompt,
		name:        "Generic Assistant",
		description: "An AI assistant that can perform various tasks.",
	}
}

// WithInputParser sets the hook that pre-processes the user input.
func (a *Assistant) WithInputParser(inputParser func(string) (string, error)) *Assistant {
	a.inputParser = inputParser
	return a
}

// GetCallConfig returns the assistant config with the call options applied.
func (a *Assistant) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

// WithName sets the name of the Assistant, when used in a prompt of another Assistants or LLMs.
func (a *Assistant) WithName(name string) *Assistant {
	a.name = name
	return a
}

// WithDescription sets the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
func (a *Assistant) WithDescription(description string) *Assistant {
	a.description = description
	return a
}

// Name returns the name of the Assistant.
func (a *Assistant) Name() string {
	return a.name
}

// Description returns the description of the Assistant.
func (a *Assistant) Description() string {
	return a.description
}

// GetTools returns the tools in registration order.
func (a *Assistant) GetTools() []tools.ITool {
	return a.tools.Tools()
}

// WithTools adds new tools to the Assistant,
// existing tools are not replaced.
// Tools with invalid parameters are skipped and logged.
func (a *Assistant) WithTools(list ...tools.ITool) *Assistant {
	for _, tool := range list {
		if err := a.tools.Add(tool); err != nil {
			logger.KV(xlog.ERROR,
				"assistant", a.name,
				"status", "invalid_tool",
				"tool", tool.Name(),
				"err", err.Error(),
			)
		}
	}
	return a
}

// LastRunMessages returns the messages produced by the last run:
// the user message, the tool calls and responses, and the answer.
func (a *Assistant) LastRunMessages() []llms.Message {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.runMessages
}

// FormatPrompt renders the system prompt with the configured inputs
// overridden by promptInputs.
func (a *Assistant) FormatPrompt(promptInputs map[string]any) (prompts.PromptValue, error) {
	return a.sysprompt.FormatPrompt(llmutils.MergeInputs(a.cfg.PromptInput, promptInputs))
}

// GetPromptInputVariables returns the input variables of the system prompt.
func (a *Assistant) GetPromptInputVariables() []string {
	return a.sysprompt.GetInputVariables()
}

// WithPromptInputProvider sets the provider of extra prompt inputs.
func (a *Assistant) WithPromptInputProvider(cb ProvidePromptInputsFunc) *Assistant {
	a.onPrompt = cb
	return a
}

// GetSystemPrompt generates the system prompt for the Assistant.
func (a *Assistant) GetSystemPrompt(ctx context.Context, input string, promptInputs map[string]any) (string, error) {
	return a.systemPrompt(ctx, a.cfg, input, promptInputs)
}

func (a *Assistant) systemPrompt(ctx context.Context, cfg *Config, input string, promptInputs map[string]any) (string, error) {
	if a.onPrompt != nil {
		extra, err := a.onPrompt(ctx, input)
		if err != nil {
			return "", errors.WithMessage(err, "failed to get prompt inputs")
		}
		if len(extra) > 0 {
			promptInputs = llmutils.MergeInputs(promptInputs, extra)
		}
	}

	promptValue, err := a.sysprompt.FormatPrompt(llmutils.MergeInputs(cfg.PromptInput, promptInputs))
	if err != nil {
		return "", err
	}
	return strings.TrimRight(promptValue.String(), "\n"), nil
}

// Run sends the prompt as a user turn and returns the final answer.
func (a *Assistant) Run(ctx context.Context, prompt string) (string, error) {
	resp, err := a.Call(ctx, &CallInput{Input: prompt})
	if err != nil {
		return "", err
	}
	return ResponseText(resp), nil
}

// ResponseText returns the content of the choices separated by a blank line.
func ResponseText(resp *llms.ContentResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		parts = append(parts, choice.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Call runs one user turn.
// The context must carry a chatmodel.ChatContext.
func (a *Assistant) Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.Name())

	cfg := a.GetCallConfig(input.Options...)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input.Input)
	}

	r := &run{Assistant: a, cfg: cfg, input: input}
	resp, err := r.execute(ctx)

	a.lock.Lock()
	a.runMessages = r.saved
	a.lock.Unlock()

	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.Name())
		if callback != nil {
			callback.OnAssistantError(ctx, a, input.Input, err, r.history)
		}
		return nil, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.Name())
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input.Input, resp, r.history)
	}
	return resp, nil
}

// run is the state of a single Call.
type run struct {
	*Assistant
	cfg   *Config
	input *CallInput

	// history is the full conversation sent to the model
	history []llms.Message
	// saved are the messages of this turn to persist
	saved []llms.Message
}

func (r *run) keep(msgs ...llms.Message) {
	r.history = append(r.history, msgs...)
}

func (r *run) record(isTool bool, msgs ...llms.Message) {
	if isTool && r.cfg.SkipToolHistory {
		return
	}
	r.saved = append(r.saved, msgs...)
}

func (r *run) execute(ctx context.Context) (*llms.ContentResponse, error) {
	cfg := r.cfg
	assistantName := r.Name()

	_, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, errors.WithStack(chatmodel.ErrInvalidChatContext)
	}

	systemPrompt, err := r.systemPrompt(ctx, cfg, r.input.Input, r.input.PromptInputs)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to format system prompt")
	}

	r.keep(llms.MessageFromTextParts(llms.RoleSystem, systemPrompt))
	for _, example := range cfg.Examples {
		r.keep(
			llms.MessageFromTextParts(llms.RoleHuman, example.Prompt),
			llms.MessageFromTextParts(llms.RoleAI, example.Completion),
		)
	}
	if cfg.Store != nil {
		prevMessages, err := cfg.Store.Messages(ctx)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load message history")
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", assistantName,
			"chat_id", chatID,
			"message_history", len(prevMessages))
		r.keep(store.TrimHistory(prevMessages, 0)...)
	}

	parsedInput := r.input.Input
	if parsedInput != "" {
		if r.inputParser != nil {
			parsedInput, err = r.inputParser(parsedInput)
			if err != nil {
				return nil, errors.WithMessage(err, "failed to parse input")
			}
		}
		userMessage := llms.MessageFromTextParts(llms.RoleHuman, parsedInput)
		r.keep(userMessage)
		r.record(false, userMessage)
	}
	r.keep(r.input.Messages...)

	var extra []llms.CallOption
	if r.tools.Len() > 0 {
		if !r.LLM.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, errors.Newf("assistant %s: the LLM does not support function calling", assistantName)
		}
		extra = append(extra, llms.WithTools(r.tools.Definitions()))
	}
	callOpts := cfg.GetCallOptions(extra...)

	modelName := r.LLM.GetName()
	stepsLimit := values.NumbersCoalesce(cfg.MaxSteps, DefaultMaxSteps)
	messagesLimit := values.NumbersCoalesce(cfg.MaxMessages, DefaultMaxMessages)
	bytesLimit := uint64(values.NumbersCoalesce(cfg.MaxLength, DefaultMaxContentSize))
	toolsLimit := values.NumbersCoalesce(cfg.MaxToolCalls, DefaultMaxToolCalls)

	var resp *llms.ContentResponse
	var steps, retryCount, totalToolExecuted int
	for {
		if steps >= stepsLimit {
			metricskey.StatsAssistantStepsExceeded.IncrCounter(1, assistantName)
			return nil, errors.Wrapf(ErrMaxStepsExceeded, "assistant %s: %d steps", assistantName, steps)
		}
		if len(r.history) >= messagesLimit {
			return nil, errors.Newf("assistant %s: the messages count exceeded limit", assistantName)
		}
		bytesSent := llmutils.CountMessagesContentSize(r.history)
		if bytesSent > bytesLimit {
			return nil, errors.Newf("assistant %s: the content size exceeded limit", assistantName)
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, r.Assistant, r.LLM, r.history)
		}

		steps++
		metricskey.StatsAssistantSteps.IncrCounter(1, assistantName)
		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(r.history)), assistantName, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

		resp, err = r.LLM.GenerateContent(ctx, r.history, callOpts...)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to generate content from LLM")
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, r.Assistant, r.LLM, resp)
		}

		metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), assistantName, modelName)
		tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)
		metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), assistantName, modelName)

		if len(resp.Choices) == 0 {
			retryCount++
			if retryCount >= DefaultMaxRetries {
				logger.ContextKV(ctx, xlog.ERROR,
					"assistant", assistantName,
					"status", "max_retries_exceeded",
					"input", slices.StringUpto(parsedInput, 64),
					"retry_count", retryCount,
				)
				return nil, errors.Newf("assistant %s: LLM returned empty response after %d retries", assistantName, retryCount)
			}
			metricskey.StatsAssistantCallsRetried.IncrCounter(1, assistantName)
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", assistantName,
				"status", "retrying_empty_response",
				"retry_count", retryCount,
			)
			continue
		}

		executed, notFound, err := r.executeToolCalls(ctx, resp)
		if err != nil {
			return nil, err
		}
		if executed == 0 {
			break
		}
		if notFound > maxNotFoundTools {
			return nil, errors.Newf("assistant %s: the number of not found tools is exceeded", assistantName)
		}
		totalToolExecuted += executed
		if totalToolExecuted >= toolsLimit {
			return nil, errors.Newf("assistant %s: the tool calls limit is exceeded", assistantName)
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"assistant", assistantName,
		"status", "response_analysis",
		"choices_count", len(resp.Choices),
		"steps", steps,
		"tool_calls", totalToolExecuted,
	)

	result := ResponseText(resp)
	answer := llms.MessageFromTextParts(llms.RoleAI, result)
	r.keep(answer)
	r.record(false, answer)

	if cfg.Store != nil && !cfg.SkipMessageHistory && len(r.saved) > 0 {
		if err := cfg.Store.Add(ctx, r.saved...); err != nil {
			return nil, errors.WithMessage(err, "failed to save message history")
		}
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", assistantName,
			"chat_id", chatID,
			"status", "added_message_history",
			"message_history", len(r.saved),
			"human", slices.StringUpto(parsedInput, 64),
			"ai", slices.StringUpto(result, 64),
		)
	}

	return resp, nil
}

// executeToolCalls runs the tool calls of the response concurrently and
// appends one tool message per call in call order.
// It returns the number of calls and of unknown tools.
func (r *run) executeToolCalls(ctx context.Context, resp *llms.ContentResponse) (int, int, error) {
	var toolCalls []llms.ToolCall
	for _, choice := range resp.Choices {
		if len(choice.ToolCalls) == 0 {
			continue
		}
		calls := make([]llms.ToolCall, 0, len(choice.ToolCalls))
		for i, toolCall := range choice.ToolCalls {
			if toolCall.FunctionCall == nil {
				toolCall.FunctionCall = &llms.FunctionCall{}
			}
			if toolCall.ID == "" {
				toolCall.ID = fmt.Sprintf("%s_%d", toolCall.FunctionCall.Name, i)
			}
			toolCall.Type = values.StringsCoalesce(toolCall.Type, "function")
			calls = append(calls, toolCall)

			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", r.name,
				"status", "tool_call_found",
				"tool_call_id", toolCall.ID,
				"tool_call_name", toolCall.FunctionCall.Name,
			)
		}
		toolCalls = append(toolCalls, calls...)
		msg := llms.MessageFromToolCalls(llms.RoleAI, calls...)
		r.keep(msg)
		r.record(true, msg)
	}

	if len(toolCalls) == 0 {
		return 0, 0, nil
	}

	results := make([]string, len(toolCalls))
	notFound := make([]bool, len(toolCalls))

	var wg sync.WaitGroup
	wg.Add(len(toolCalls))
	for i, toolCall := range toolCalls {
		go func(index int, tc llms.ToolCall) {
			defer wg.Done()
			results[index], notFound[index] = r.callTool(ctx, tc)
		}(i, toolCall)
	}
	wg.Wait()

	notFoundCount := 0
	for i, tc := range toolCalls {
		if notFound[i] {
			notFoundCount++
		}
		msg := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: tc.ID,
			Name:       tc.FunctionCall.Name,
			Content:    results[i],
		})
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", r.name,
			"status", "tool_call_response",
			"tool_call_id", tc.ID,
			"tool_name", tc.FunctionCall.Name,
			"content_length", len(results[i]),
		)
		r.keep(msg)
		r.record(true, msg)
	}

	return len(toolCalls), notFoundCount, nil
}

// callTool returns the observation for the call, and true if the tool is unknown.
func (r *run) callTool(ctx context.Context, tc llms.ToolCall) (string, bool) {
	cfg := r.cfg
	toolName := tc.FunctionCall.Name
	toolArgs := tc.FunctionCall.Arguments

	tool := r.tools.Get(toolName)
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolNotFound(ctx, r.Assistant, toolName)
		}
		availableTools := strings.Join(tools.Names(r.tools.Tools()...), ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", r.name,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", availableTools,
		)
		return fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, availableTools), true
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolStart(ctx, tool, r.name, toolArgs)
	}

	started := time.Now()
	var res string
	var err error
	if at, ok := tool.(IAssistantTool); ok {
		res, err = at.CallAssistant(ctx, toolArgs, r.input.Options...)
	} else {
		res, err = tool.Call(ctx, toolArgs)
	}
	metricskey.PerfToolCall.MeasureSince(started, toolName)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolError(ctx, tool, r.name, toolArgs, err)
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", r.name,
			"status", "tool_call_failed",
			"tool", toolName,
			"err", err.Error(),
		)
		if errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
			return fmt.Sprintf("Failed to unmarshal input for tool `%s`, check the JSON schema and try again.", toolName), false
		}
		return fmt.Sprintf("Tool call failed: %s", err.Error()), false
	}

	metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolEnd(ctx, tool, r.name, toolArgs, res)
	}
	return res, false
}
