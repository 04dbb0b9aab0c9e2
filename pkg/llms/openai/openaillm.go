// Package openai implements llms.Model over the OpenAI chat completions API,
// which is also served by Groq and Perplexity.
package openai

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "openai")

var (
	// ErrEmptyResponse is returned when the API returns no choices.
	ErrEmptyResponse = errors.New("no response")
	// ErrMissingToken is returned when no token is configured.
	ErrMissingToken = errors.New("missing the API key")
)

// LLM is an OpenAI compatible chat model.
type LLM struct {
	client   openai.Client
	model    string
	provider llms.ProviderType
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI compatible LLM.
func New(opts ...Option) (*LLM, error) {
	o := &options{
		provider:   llms.ProviderOpenAI,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(o)
	}

	var tokenEnv, baseURL, model string
	switch o.provider {
	case llms.ProviderOpenAI:
		tokenEnv = tokenEnvVarName
		baseURL = values.StringsCoalesce(os.Getenv(baseURLEnvVarName), DefaultBaseURL)
		model = values.StringsCoalesce(os.Getenv(modelEnvVarName), DefaultModel)
		o.organization = values.StringsCoalesce(o.organization, os.Getenv(organizationEnvVarName))
	case llms.ProviderGroq:
		tokenEnv = groqTokenEnvVarName
		baseURL = GroqBaseURL
		model = GroqDefaultModel
	case llms.ProviderPerplexity:
		tokenEnv = perplexityTokenEnvVarName
		baseURL = PerplexityBaseURL
		model = PerplexityDefaultModel
	default:
		return nil, errors.Newf("unsupported provider: %s", o.provider)
	}

	token := values.StringsCoalesce(o.token, os.Getenv(tokenEnv))
	if token == "" {
		return nil, errors.WithMessagef(ErrMissingToken, "set %s", tokenEnv)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(token),
		option.WithBaseURL(values.StringsCoalesce(o.baseURL, baseURL)),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(o.organization))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	return &LLM{
		client:   openai.NewClient(reqOpts...),
		model:    values.StringsCoalesce(o.model, model),
		provider: o.provider,
	}, nil
}

// GetName returns the default model name.
func (o *LLM) GetName() string {
	return o.model
}

// GetProviderType returns OPENAI, GROQ or PERPLEXITY.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.provider
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	msgs, err := toChatMessages(messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(values.StringsCoalesce(opts.Model, o.model)),
		Messages: msgs,
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = openai.Float(opts.TopP)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Seed != 0 {
		params.Seed = openai.Int(int64(opts.Seed))
	}
	if opts.N > 0 {
		params.N = openai.Int(int64(opts.N))
	}
	if opts.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(opts.FrequencyPenalty)
	}
	if opts.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(opts.PresencePenalty)
	}
	if len(opts.StopWords) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.StopWords}
	}
	if opts.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	for _, t := range opts.Tools {
		if t.Function == nil {
			continue
		}
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Function.Name,
			Description: openai.String(t.Function.Description),
			Parameters:  shared.FunctionParameters(schema.ToMap(t.Function.Parameters)),
			Strict:      openai.Bool(t.Function.Strict),
		}))
	}
	if len(params.Tools) > 0 {
		if choice := toolChoice(opts.ToolChoice); choice != "" {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(choice)}
		}
	}

	result, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: chat completion failed", strings.ToLower(string(o.provider)))
	}
	if len(result.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	resp := &llms.ContentResponse{
		Choices: make([]*llms.ContentChoice, 0, len(result.Choices)),
	}
	for _, c := range result.Choices {
		choice := &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		resp.Choices = append(resp.Choices, choice)
	}

	if opts.StreamingFunc != nil && resp.Choices[0].Content != "" {
		if err = opts.StreamingFunc(ctx, []byte(resp.Choices[0].Content)); err != nil {
			return nil, errors.WithMessage(err, "streaming func")
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"provider", o.provider,
		"model", result.Model,
		"choices", len(resp.Choices),
		"tool_calls", len(resp.Choices[0].ToolCalls),
		"tokens", result.Usage.TotalTokens,
	)
	return resp, nil
}

// toolChoice returns "none", "auto" or "required"; a named tool is sent as "required"
func toolChoice(choice any) string {
	name := llms.ToolChoiceName(choice)
	switch name {
	case "", llms.ToolChoiceAuto, llms.ToolChoiceNone, llms.ToolChoiceRequired:
		return name
	default:
		return llms.ToolChoiceRequired
	}
}

func toChatMessages(messages []llms.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	res := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case llms.RoleSystem:
			res = append(res, openai.SystemMessage(textOf(m)))
		case llms.RoleHuman, llms.RoleGeneric:
			res = append(res, userMessage(m))
		case llms.RoleAI:
			res = append(res, assistantMessage(m))
		case llms.RoleTool:
			for _, p := range m.Parts {
				tr, ok := p.(llms.ToolCallResponse)
				if !ok {
					return nil, errors.Newf("tool message must contain tool responses, got %T", p)
				}
				res = append(res, openai.ToolMessage(tr.Content, tr.ToolCallID))
			}
		default:
			return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "role %s", m.Role)
		}
	}
	return res, nil
}

func textOf(m llms.Message) string {
	var texts []string
	for _, p := range m.Parts {
		if tc, ok := p.(llms.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	return strings.Join(texts, "\n")
}

func userMessage(m llms.Message) openai.ChatCompletionMessageParamUnion {
	multi := false
	for _, p := range m.Parts {
		switch p.(type) {
		case llms.ImageURLContent, llms.BinaryContent:
			multi = true
		}
	}
	if !multi {
		return openai.UserMessage(textOf(m))
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch pp := p.(type) {
		case llms.TextContent:
			parts = append(parts, openai.TextContentPart(pp.Text))
		case llms.ImageURLContent:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    pp.URL,
				Detail: pp.Detail,
			}))
		case llms.BinaryContent:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: pp.String(),
			}))
		}
	}
	return openai.UserMessage(parts)
}

func assistantMessage(m llms.Message) openai.ChatCompletionMessageParamUnion {
	am := &openai.ChatCompletionAssistantMessageParam{}
	if text := textOf(m); text != "" {
		am.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
	}
	for _, tc := range m.ToolCalls() {
		if tc.FunctionCall == nil {
			continue
		}
		am.ToolCalls = append(am.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.FunctionCall.Name,
					Arguments: tc.FunctionCall.Arguments,
				},
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: am}
}
