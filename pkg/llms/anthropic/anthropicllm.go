// Package anthropic implements llms.Model over the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "anthropic")

var (
	ErrEmptyResponse          = errors.New("anthropic: no response")
	ErrMissingToken           = errors.New("anthropic: missing API key, set it in the ANTHROPIC_API_KEY environment variable")
	ErrInvalidContentType     = errors.New("anthropic: invalid content type")
	ErrUnsupportedMessageType = errors.New("anthropic: unsupported message type")
)

// DefaultMaxTokens is sent when the call has no max tokens, the API requires it.
const DefaultMaxTokens = 4096

// LLM is the Anthropic chat model.
type LLM struct {
	client  anthropic.Client
	options *Options
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Anthropic LLM.
func New(opts ...Option) (*LLM, error) {
	o := &Options{
		Token:      os.Getenv(TokenEnvVarName),
		Model:      DefaultModel,
		BaseURL:    DefaultBaseURL,
		MaxRetries: 2,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Token == "" {
		return nil, ErrMissingToken
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(o.Token),
		option.WithMaxRetries(o.MaxRetries),
		option.WithRequestTimeout(5 * time.Minute),
		option.WithBaseURL(o.BaseURL),
	}
	if o.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(o.HTTPClient))
	}
	if o.BetaHeader != "" {
		sdkOpts = append(sdkOpts, option.WithHeader("anthropic-beta", o.BetaHeader))
	}

	return &LLM{
		client:  anthropic.NewClient(sdkOpts...),
		options: o,
	}, nil
}

// GetName returns the default model name.
func (o *LLM) GetName() string {
	return o.options.Model
}

// GetProviderType returns ANTHROPIC.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// GenerateContent implements the Model interface. Text and tool use blocks of
// the reply are returned in a single choice.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	msgs, system, err := ProcessMessages(messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(values.StringsCoalesce(opts.Model, o.options.Model)),
		Messages:  msgs,
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
		Tools:     ToTools(opts.Tools),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = anthropic.Float(opts.TopP)
	}
	if opts.TopK > 0 {
		params.TopK = anthropic.Int(int64(opts.TopK))
	}
	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}

	if opts.StreamingFunc != nil {
		return o.generateStreaming(ctx, params, opts.StreamingFunc)
	}

	result, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "anthropic: failed to create message")
	}

	choice := &llms.ContentChoice{
		StopReason:     string(result.StopReason),
		GenerationInfo: usageInfo(result.Usage.InputTokens, result.Usage.OutputTokens),
	}
	choice.GenerationInfo["ID"] = result.ID

	var texts []string
	for _, block := range result.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			texts = append(texts, b.Text)
		case anthropic.ToolUseBlock:
			args, err := json.Marshal(b.Input)
			if err != nil {
				return nil, errors.Wrap(err, "anthropic: failed to marshal tool use arguments")
			}
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:           b.ID,
				Type:         "function",
				FunctionCall: &llms.FunctionCall{Name: b.Name, Arguments: string(args)},
			})
		case anthropic.ThinkingBlock:
			choice.ReasoningContent += b.Thinking
		default:
			logger.ContextKV(ctx, xlog.DEBUG, "reason", "skip_block", "type", block.Type)
		}
	}
	choice.Content = strings.Join(texts, "\n")

	if choice.Content == "" && len(choice.ToolCalls) == 0 {
		return nil, ErrEmptyResponse
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func (o *LLM) generateStreaming(ctx context.Context, params anthropic.MessageNewParams, streamingFunc func(context.Context, []byte) error) (*llms.ContentResponse, error) {
	stream := o.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var content strings.Builder
	var toolCalls []llms.ToolCall
	var current *llms.ToolCall
	var stopReason string
	var inputTokens, outputTokens int64

	for stream.Next() {
		switch evt := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			inputTokens = evt.Message.Usage.InputTokens
		case anthropic.ContentBlockStartEvent:
			if block, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				current = &llms.ToolCall{
					ID:           block.ID,
					Type:         "function",
					FunctionCall: &llms.FunctionCall{Name: block.Name},
				}
			}
		case anthropic.ContentBlockDeltaEvent:
			switch delta := evt.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				content.WriteString(delta.Text)
				if err := streamingFunc(ctx, []byte(delta.Text)); err != nil {
					return nil, errors.WithMessage(err, "anthropic: streaming func")
				}
			case anthropic.InputJSONDelta:
				if current != nil {
					current.FunctionCall.Arguments += delta.PartialJSON
				}
			}
		case anthropic.ContentBlockStopEvent:
			if current != nil {
				if current.FunctionCall.Arguments == "" {
					current.FunctionCall.Arguments = "{}"
				}
				toolCalls = append(toolCalls, *current)
				current = nil
			}
		case anthropic.MessageDeltaEvent:
			stopReason = string(evt.Delta.StopReason)
			outputTokens = evt.Usage.OutputTokens
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrap(err, "anthropic: streaming error")
	}
	if content.Len() == 0 && len(toolCalls) == 0 {
		return nil, ErrEmptyResponse
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        content.String(),
			StopReason:     stopReason,
			ToolCalls:      toolCalls,
			GenerationInfo: usageInfo(inputTokens, outputTokens),
		}},
	}, nil
}

func usageInfo(in, out int64) map[string]any {
	return map[string]any{
		"InputTokens":  in,
		"OutputTokens": out,
		"TotalTokens":  in + out,
	}
}

// ToTools converts tool definitions to the SDK tool parameters.
func ToTools(tools []llms.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	res := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			continue
		}
		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       "object",
			Properties: schema.PropertiesMap(tool.Function.Parameters),
		}
		if p := tool.Function.Parameters; p != nil && len(p.Required) > 0 {
			inputSchema.Required = p.Required
		}
		res = append(res, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Function.Name,
				Description: anthropic.String(tool.Function.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return res
}

// ProcessMessages converts messages to the SDK format. System messages are
// joined and returned separately.
func ProcessMessages(messages []llms.Message) ([]anthropic.MessageParam, string, error) {
	res := make([]anthropic.MessageParam, 0, len(messages))
	var system []string
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			continue
		}
		var blocks []anthropic.ContentBlockParamUnion
		var err error
		switch msg.Role {
		case llms.RoleSystem:
			for _, p := range msg.Parts {
				tc, ok := p.(llms.TextContent)
				if !ok {
					return nil, "", errors.WithMessagef(ErrInvalidContentType, "system message part %T", p)
				}
				system = append(system, tc.Text)
			}
			continue
		case llms.RoleHuman, llms.RoleGeneric:
			blocks, err = humanBlocks(msg)
		case llms.RoleAI:
			blocks, err = aiBlocks(msg)
		case llms.RoleTool:
			blocks, err = toolBlocks(msg)
		default:
			err = errors.WithMessagef(ErrUnsupportedMessageType, "role %s", msg.Role)
		}
		if err != nil {
			return nil, "", err
		}
		if msg.Role == llms.RoleAI {
			res = append(res, anthropic.NewAssistantMessage(blocks...))
		} else {
			res = append(res, anthropic.NewUserMessage(blocks...))
		}
	}
	return res, strings.Join(system, "\n"), nil
}

func humanBlocks(msg llms.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
		case llms.BinaryContent:
			if !strings.HasPrefix(p.MIMEType, "image/") {
				return nil, errors.WithMessagef(ErrInvalidContentType, "binary %s", p.MIMEType)
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(p.MIMEType, base64.StdEncoding.EncodeToString(p.Data)))
		default:
			return nil, errors.WithMessagef(ErrInvalidContentType, "human message part %T", part)
		}
	}
	return blocks, nil
}

func aiBlocks(msg llms.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case llms.TextContent:
			if p.Text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			}
		case llms.ToolCall:
			if p.FunctionCall == nil {
				return nil, errors.WithMessagef(ErrInvalidContentType, "tool call %s without function", p.ID)
			}
			args := values.StringsCoalesce(p.FunctionCall.Arguments, "{}")
			var input json.RawMessage
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return nil, errors.Wrap(err, "anthropic: invalid tool call arguments")
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(p.ID, input, p.FunctionCall.Name))
		default:
			return nil, errors.WithMessagef(ErrInvalidContentType, "AI message part %T", part)
		}
	}
	return blocks, nil
}

func toolBlocks(msg llms.Message) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range msg.Parts {
		tr, ok := part.(llms.ToolCallResponse)
		if !ok {
			return nil, errors.WithMessagef(ErrInvalidContentType, "tool message part %T", part)
		}
		blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolCallID, tr.Content, false))
	}
	return blocks, nil
}
