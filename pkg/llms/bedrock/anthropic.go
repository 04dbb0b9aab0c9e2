package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/x/values"
)

// Ref: https://docs.aws.amazon.com/bedrock/latest/userguide/model-parameters-anthropic-claude-messages.html

const (
	anthropicVersion = "bedrock-2023-05-31"
	defaultMaxTokens = 2048

	roleUser      = "user"
	roleAssistant = "assistant"

	typeText       = "text"
	typeImage      = "image"
	typeToolUse    = "tool_use"
	typeToolResult = "tool_result"
)

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema inputSchema `json:"input_schema"`
}

type inputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

type request struct {
	AnthropicVersion string     `json:"anthropic_version"`
	MaxTokens        int        `json:"max_tokens"`
	System           string     `json:"system,omitempty"`
	Messages         []*message `json:"messages"`
	Temperature      float64    `json:"temperature,omitempty"`
	TopP             float64    `json:"top_p,omitempty"`
	TopK             int        `json:"top_k,omitempty"`
	StopSequences    []string   `json:"stop_sequences,omitempty"`
	Tools            []tool     `json:"tools,omitempty"`
}

type usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type response struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type streamChunk struct {
	Type         string        `json:"type"`
	Index        int           `json:"index"`
	ContentBlock *contentBlock `json:"content_block"`
	Delta        struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage   usage `json:"usage"`
	Message struct {
		Usage usage `json:"usage"`
	} `json:"message"`
}

func createAnthropicCompletion(ctx context.Context, client API, modelID string, messages []llms.Message, opts *llms.CallOptions) (*llms.ContentResponse, error) {
	msgs, system, err := toAnthropicMessages(messages)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(request{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        values.NumbersCoalesce(opts.MaxTokens, defaultMaxTokens),
		System:           system,
		Messages:         msgs,
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
		TopK:             opts.TopK,
		StopSequences:    opts.StopWords,
		Tools:            toAnthropicTools(opts.Tools),
	})
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to marshal request")
	}

	if opts.StreamingFunc != nil {
		return invokeStreaming(ctx, client, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(modelID),
			Accept:      aws.String("application/json"),
			ContentType: aws.String("application/json"),
			Body:        body,
		}, opts.StreamingFunc)
	}

	resp, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to invoke model")
	}

	var out response
	if err = json.Unmarshal(resp.Body, &out); err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to unmarshal response")
	}
	if len(out.Content) == 0 {
		return nil, errors.New("bedrock: no results")
	}
	if out.StopReason == "max_tokens" {
		return nil, errors.New("bedrock: completed due to max_tokens, try increasing max tokens")
	}

	choice := &llms.ContentChoice{
		StopReason:     out.StopReason,
		GenerationInfo: usageInfo(out.Usage.InputTokens, out.Usage.OutputTokens),
	}
	var texts []string
	for _, c := range out.Content {
		switch c.Type {
		case typeText:
			texts = append(texts, c.Text)
		case typeToolUse:
			choice.ToolCalls = append(choice.ToolCalls, llms.ToolCall{
				ID:   c.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      c.Name,
					Arguments: values.StringsCoalesce(string(c.Input), "{}"),
				},
			})
		}
	}
	choice.Content = strings.Join(texts, "\n")

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func invokeStreaming(ctx context.Context, client API, input *bedrockruntime.InvokeModelWithResponseStreamInput, streamingFunc func(context.Context, []byte) error) (*llms.ContentResponse, error) {
	output, err := client.InvokeModelWithResponseStream(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "bedrock: failed to invoke model stream")
	}
	stream := output.GetStream()
	if stream == nil {
		return nil, errors.New("bedrock: no stream")
	}
	defer func() {
		_ = stream.Close()
	}()

	choice := &llms.ContentChoice{}
	var current *llms.ToolCall
	var inTokens, outTokens int64

	for e := range stream.Events() {
		v, ok := e.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var chunk streamChunk
		if err := json.Unmarshal(v.Value.Bytes, &chunk); err != nil {
			return nil, errors.Wrap(err, "bedrock: invalid stream chunk")
		}

		switch chunk.Type {
		case "message_start":
			inTokens = chunk.Message.Usage.InputTokens
		case "content_block_start":
			if chunk.ContentBlock != nil && chunk.ContentBlock.Type == typeToolUse {
				current = &llms.ToolCall{
					ID:           chunk.ContentBlock.ID,
					Type:         "function",
					FunctionCall: &llms.FunctionCall{Name: chunk.ContentBlock.Name},
				}
			}
		case "content_block_delta":
			switch chunk.Delta.Type {
			case "input_json_delta":
				if current != nil {
					current.FunctionCall.Arguments += chunk.Delta.PartialJSON
				}
			default:
				if err := streamingFunc(ctx, []byte(chunk.Delta.Text)); err != nil {
					return nil, errors.WithMessage(err, "bedrock: streaming func")
				}
				choice.Content += chunk.Delta.Text
			}
		case "content_block_stop":
			if current != nil {
				current.FunctionCall.Arguments = values.StringsCoalesce(current.FunctionCall.Arguments, "{}")
				choice.ToolCalls = append(choice.ToolCalls, *current)
				current = nil
			}
		case "message_delta":
			choice.StopReason = chunk.Delta.StopReason
			outTokens = chunk.Usage.OutputTokens
		}
	}
	if err = stream.Err(); err != nil {
		return nil, errors.Wrap(err, "bedrock: stream error")
	}

	choice.GenerationInfo = usageInfo(inTokens, outTokens)
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}

func usageInfo(in, out int64) map[string]any {
	return map[string]any{
		"InputTokens":  in,
		"OutputTokens": out,
		"TotalTokens":  in + out,
	}
}

func toAnthropicTools(tools []llms.Tool) []tool {
	var res []tool
	for _, t := range tools {
		if t.Function == nil {
			continue
		}
		s := inputSchema{
			Type:       "object",
			Properties: schema.PropertiesMap(t.Function.Parameters),
		}
		if t.Function.Parameters != nil {
			s.Required = t.Function.Parameters.Required
		}
		res = append(res, tool{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			InputSchema: s,
		})
	}
	return res
}

// toAnthropicMessages converts messages to the Anthropic body, merging
// consecutive messages with the same wire role. System text is returned
// separately.
func toAnthropicMessages(messages []llms.Message) ([]*message, string, error) {
	var res []*message
	var system []string

	for _, m := range messages {
		role := roleUser
		switch m.Role {
		case llms.RoleSystem:
			for _, p := range m.Parts {
				tc, ok := p.(llms.TextContent)
				if !ok {
					return nil, "", errors.Errorf("bedrock: system prompt must be text, got %T", p)
				}
				system = append(system, tc.Text)
			}
			continue
		case llms.RoleAI:
			role = roleAssistant
		case llms.RoleHuman, llms.RoleGeneric, llms.RoleTool:
		default:
			return nil, "", errors.Errorf("bedrock: role %q not supported", m.Role)
		}

		blocks := make([]contentBlock, 0, len(m.Parts))
		for _, part := range m.Parts {
			b, err := toContentBlock(part)
			if err != nil {
				return nil, "", err
			}
			blocks = append(blocks, b)
		}
		if len(blocks) == 0 {
			continue
		}

		if n := len(res); n > 0 && res[n-1].Role == role {
			res[n-1].Content = append(res[n-1].Content, blocks...)
			continue
		}
		res = append(res, &message{Role: role, Content: blocks})
	}
	return res, strings.Join(system, "\n"), nil
}

func toContentBlock(part llms.ContentPart) (contentBlock, error) {
	switch p := part.(type) {
	case llms.TextContent:
		return contentBlock{Type: typeText, Text: p.Text}, nil
	case llms.BinaryContent:
		return contentBlock{
			Type: typeImage,
			Source: &imageSource{
				Type:      "base64",
				MediaType: p.MIMEType,
				Data:      base64.StdEncoding.EncodeToString(p.Data),
			},
		}, nil
	case llms.ToolCall:
		if p.FunctionCall == nil {
			return contentBlock{}, errors.Errorf("bedrock: tool call %s without function", p.ID)
		}
		args := values.StringsCoalesce(p.FunctionCall.Arguments, "{}")
		if !json.Valid([]byte(args)) {
			return contentBlock{}, errors.Errorf("bedrock: invalid arguments for tool call %s", p.ID)
		}
		return contentBlock{
			Type:  typeToolUse,
			ID:    p.ID,
			Name:  p.FunctionCall.Name,
			Input: json.RawMessage(args),
		}, nil
	case llms.ToolCallResponse:
		return contentBlock{
			Type:      typeToolResult,
			ToolUseID: p.ToolCallID,
			Content:   p.Content,
		}, nil
	default:
		return contentBlock{}, errors.Errorf("bedrock: unsupported part %T", part)
	}
}
