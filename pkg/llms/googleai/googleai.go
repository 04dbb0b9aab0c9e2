// Package googleai implements llms.Model over the Gemini API and Vertex AI.
// See https://ai.google.dev/ for more details.
package googleai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "googleai")

var (
	ErrNoContentInResponse   = errors.New("no content in generation response")
	ErrUnknownPartInResponse = errors.New("unknown part type in generation response")
	ErrMissingAuth           = errors.New("googleai: missing API key or credentials, set GOOGLE_API_KEY")
)

const (
	CITATIONS = "citations"
	SAFETY    = "safety"

	RoleModel = "model"
	RoleUser  = "user"

	ResponseMIMETypeJSON = "application/json"
)

// GoogleAI is the Gemini chat model.
type GoogleAI struct {
	client *genai.Client
	opts   Options
}

var _ llms.Model = (*GoogleAI)(nil)

// New creates a new GoogleAI client.
func New(ctx context.Context, opts ...Option) (*GoogleAI, error) {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	o.EnsureAuthPresent()
	if o.APIKey == "" && o.Credentials == nil && o.CloudProject == "" {
		return nil, ErrMissingAuth
	}

	cfg := &genai.ClientConfig{
		Project:     o.CloudProject,
		Location:    o.CloudLocation,
		APIKey:      o.APIKey,
		Credentials: o.Credentials,
		HTTPClient:  o.HTTPClient,
		Backend:     o.Backend(),
		HTTPOptions: genai.HTTPOptions{BaseURL: o.BaseURL},
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to create client")
	}

	return &GoogleAI{client: client, opts: o}, nil
}

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.opts.DefaultModel
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the Model interface.
func (g *GoogleAI) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:          g.opts.DefaultModel,
		CandidateCount: g.opts.DefaultCandidateCount,
		MaxTokens:      g.opts.DefaultMaxTokens,
		Temperature:    g.opts.DefaultTemperature,
		TopP:           g.opts.DefaultTopP,
		TopK:           g.opts.DefaultTopK,
	}
	for _, opt := range options {
		opt(&opts)
	}

	cfg := &genai.GenerateContentConfig{
		StopSequences:   opts.StopWords,
		CandidateCount:  int32(opts.CandidateCount), //nolint:gosec
		MaxOutputTokens: int32(opts.MaxTokens),      //nolint:gosec
		Temperature:     float32Ptr(opts.Temperature),
		TopP:            float32Ptr(opts.TopP),
		TopK:            float32Ptr(float64(opts.TopK)),
		Seed:            int32Ptr(opts.Seed),
	}
	for _, cat := range []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	} {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  cat,
			Threshold: g.opts.HarmThreshold,
		})
	}

	var err error
	if cfg.Tools, err = ConvertTools(opts.Tools); err != nil {
		return nil, err
	}
	if len(cfg.Tools) > 0 {
		cfg.ToolConfig = toolConfig(opts.ToolChoice)
	} else if opts.JSONMode {
		cfg.ResponseMIMEType = ResponseMIMETypeJSON
	}

	history := make([]*genai.Content, 0, len(messages))
	var system []*genai.Part
	for _, msg := range messages {
		content, err := convertContent(msg)
		if err != nil {
			return nil, err
		}
		if msg.Role == llms.RoleSystem {
			system = append(system, content.Parts...)
			continue
		}
		history = append(history, content)
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}

	model := values.StringsCoalesce(opts.Model, g.opts.DefaultModel)
	logger.ContextKV(ctx, xlog.DEBUG, "model", model, "messages", len(history), "tools", len(opts.Tools))
	if opts.StreamingFunc != nil {
		return g.generateStreaming(ctx, model, history, cfg, opts.StreamingFunc)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, history, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to generate content")
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoContentInResponse
	}
	return convertCandidates(resp.Candidates, resp.UsageMetadata)
}

// generateStreaming merges the streamed chunks into a single candidate.
func (g *GoogleAI) generateStreaming(
	ctx context.Context,
	model string,
	history []*genai.Content,
	cfg *genai.GenerateContentConfig,
	streamingFunc func(context.Context, []byte) error,
) (*llms.ContentResponse, error) {
	merged := &genai.Candidate{Content: &genai.Content{Role: RoleModel}}
	var usage *genai.GenerateContentResponseUsageMetadata

	for resp, err := range g.client.Models.GenerateContentStream(ctx, model, history, cfg) {
		if err != nil {
			return nil, errors.Wrap(err, "googleai: streaming error")
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		if len(resp.Candidates) == 0 {
			continue
		}
		c := resp.Candidates[0]
		if c.FinishReason != "" {
			merged.FinishReason = c.FinishReason
		}
		merged.SafetyRatings = c.SafetyRatings
		merged.CitationMetadata = c.CitationMetadata
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			merged.Content.Parts = append(merged.Content.Parts, part)
			if part.Text != "" && !part.Thought {
				if err := streamingFunc(ctx, []byte(part.Text)); err != nil {
					return nil, errors.WithMessage(err, "googleai: streaming func")
				}
			}
		}
	}
	if len(merged.Content.Parts) == 0 {
		return nil, ErrNoContentInResponse
	}
	return convertCandidates([]*genai.Candidate{merged}, usage)
}

func toolConfig(choice any) *genai.ToolConfig {
	mode := genai.FunctionCallingConfigModeAuto
	var allowed []string
	switch llms.ToolChoiceName(choice) {
	case "", llms.ToolChoiceAuto:
	case llms.ToolChoiceNone:
		mode = genai.FunctionCallingConfigModeNone
	case llms.ToolChoiceRequired:
		mode = genai.FunctionCallingConfigModeAny
	default:
		mode = genai.FunctionCallingConfigModeAny
		allowed = []string{llms.ToolChoiceName(choice)}
	}
	return &genai.ToolConfig{
		FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 mode,
			AllowedFunctionNames: allowed,
		},
	}
}

// convertCandidates converts genai candidates to a response. Function calls
// without an ID get a generated one so tool responses can be matched.
func convertCandidates(candidates []*genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	var res llms.ContentResponse

	for _, candidate := range candidates {
		var text, reasoning strings.Builder
		var toolCalls []llms.ToolCall

		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.Text != "" && part.Thought:
					reasoning.WriteString(part.Text)
				case part.Text != "":
					text.WriteString(part.Text)
				case part.FunctionCall != nil:
					b, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						return nil, errors.Wrap(err, "googleai: failed to marshal function args")
					}
					id := values.StringsCoalesce(part.FunctionCall.ID, uuid.NewString())
					toolCalls = append(toolCalls, llms.ToolCall{
						ID:   id,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(b),
						},
					})
				case part.ThoughtSignature != nil:
				default:
					return nil, errors.WithMessage(ErrUnknownPartInResponse, "not text or tool")
				}
			}
		}

		metadata := map[string]any{
			CITATIONS: candidate.CitationMetadata,
			SAFETY:    candidate.SafetyRatings,
		}
		if usage != nil {
			metadata["InputTokens"] = int64(usage.PromptTokenCount)
			metadata["OutputTokens"] = int64(usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount)
			metadata["TotalTokens"] = int64(usage.TotalTokenCount)
		}

		res.Choices = append(res.Choices, &llms.ContentChoice{
			Content:          text.String(),
			ReasoningContent: reasoning.String(),
			StopReason:       string(candidate.FinishReason),
			GenerationInfo:   metadata,
			ToolCalls:        toolCalls,
		})
	}
	return &res, nil
}

func convertParts(parts []llms.ContentPart) ([]*genai.Part, error) {
	res := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		out := new(genai.Part)

		switch p := part.(type) {
		case llms.TextContent:
			out.Text = p.Text
		case llms.BinaryContent:
			out.InlineData = &genai.Blob{MIMEType: p.MIMEType, Data: p.Data}
		case llms.ImageURLContent:
			blob, err := dataURL(p.URL)
			if err != nil {
				return nil, err
			}
			if blob != nil {
				out.InlineData = blob
			} else {
				out.FileData = &genai.FileData{FileURI: p.URL}
			}
		case llms.ToolCall:
			if p.FunctionCall == nil {
				return nil, errors.Errorf("tool call %s without function", p.ID)
			}
			args := map[string]any{}
			if p.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(p.FunctionCall.Arguments), &args); err != nil {
					return nil, errors.Wrap(err, "googleai: invalid tool call arguments")
				}
			}
			out.FunctionCall = &genai.FunctionCall{
				ID:   p.ID,
				Name: p.FunctionCall.Name,
				Args: args,
			}
		case llms.ToolCallResponse:
			out.FunctionResponse = &genai.FunctionResponse{
				ID:   p.ToolCallID,
				Name: p.Name,
				Response: map[string]any{
					"response": p.Content,
				},
			}
		default:
			return nil, errors.Errorf("googleai: unsupported part %T", part)
		}

		res = append(res, out)
	}
	return res, nil
}

// dataURL decodes a base64 data URL, it returns nil for any other URL.
func dataURL(u string) (*genai.Blob, error) {
	if !strings.HasPrefix(u, "data:") {
		return nil, nil
	}
	meta, data, ok := strings.Cut(strings.TrimPrefix(u, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, errors.Errorf("googleai: unsupported data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: invalid data URL")
	}
	return &genai.Blob{MIMEType: strings.TrimSuffix(meta, ";base64"), Data: raw}, nil
}

func convertContent(msg llms.Message) (*genai.Content, error) {
	parts, err := convertParts(msg.Parts)
	if err != nil {
		return nil, err
	}

	c := &genai.Content{Parts: parts}
	switch msg.Role {
	case llms.RoleSystem:
	case llms.RoleAI:
		c.Role = RoleModel
	case llms.RoleHuman, llms.RoleGeneric, llms.RoleTool:
		c.Role = RoleUser
	default:
		return nil, errors.Errorf("role %v not supported", msg.Role)
	}
	return c, nil
}
