package llms

import (
	"context"
)

// ProviderType is the type of provider.
type ProviderType string

const (
	// ProviderAnthropic is the Anthropic Messages API.
	ProviderAnthropic ProviderType = "ANTHROPIC"
	// ProviderBedrock is AWS Bedrock with Anthropic models.
	ProviderBedrock ProviderType = "BEDROCK"
	// ProviderGoogleAI is Google Gemini.
	ProviderGoogleAI ProviderType = "GOOGLEAI"
	// ProviderGroq is the OpenAI-compatible Groq endpoint.
	ProviderGroq ProviderType = "GROQ"
	// ProviderOpenAI is the OpenAI chat completions API.
	ProviderOpenAI ProviderType = "OPENAI"
	// ProviderPerplexity is the OpenAI-compatible Perplexity endpoint.
	ProviderPerplexity ProviderType = "PERPLEXITY"
	// ProviderFake is the scripted provider used by tests and offline runs.
	ProviderFake ProviderType = "FAKE"
)

//go:generate mockgen -source=llms.go -destination=../../mocks/mockllms/llms_mock.gen.go -package mockllms Model

// Model is an interface multi-modal models implement.
type Model interface {
	// GetName returns the default model name, e.g. "llama-3.3-70b-versatile".
	GetName() string
	// GetProviderType returns the type of provider.
	GetProviderType() ProviderType
	// GenerateContent asks the model to generate content from a sequence of
	// messages. The result may contain tool calls the caller is expected to
	// execute and answer with RoleTool messages.
	GenerateContent(ctx context.Context, messages []Message, options ...CallOption) (*ContentResponse, error)
}

// Capability is a bitmask indicating supported features of an LLM provider.
type Capability uint64

const (
	// CapabilityText is basic text or chat generation
	CapabilityText Capability = 1 << iota
	// CapabilityJSONResponse is JSON mode
	CapabilityJSONResponse
	// CapabilityFunctionCalling is single tool calling
	CapabilityFunctionCalling
	// CapabilityMultiToolCalling is parallel tool calls in one response
	CapabilityMultiToolCalling
	// CapabilityToolCallStreaming is tool calls in streamed responses
	CapabilityToolCallStreaming
	// CapabilityVision is image input
	CapabilityVision
	// CapabilitySelfHosted is open weight models
	CapabilitySelfHosted
	// CapabilitySystemPrompt is system prompt support
	CapabilitySystemPrompt
)

const toolsCapability = CapabilityFunctionCalling | CapabilityMultiToolCalling

var providerCapabilities = map[ProviderType]Capability{
	ProviderOpenAI:     CapabilityText | CapabilityJSONResponse | toolsCapability | CapabilityToolCallStreaming | CapabilityVision | CapabilitySystemPrompt,
	ProviderAnthropic:  CapabilityText | CapabilityJSONResponse | toolsCapability | CapabilityToolCallStreaming | CapabilityVision | CapabilitySystemPrompt,
	ProviderGoogleAI:   CapabilityText | CapabilityJSONResponse | toolsCapability | CapabilityVision | CapabilitySystemPrompt,
	ProviderBedrock:    CapabilityText | CapabilityJSONResponse | toolsCapability | CapabilitySystemPrompt,
	ProviderGroq:       CapabilityText | CapabilityJSONResponse | toolsCapability | CapabilitySelfHosted | CapabilitySystemPrompt,
	ProviderPerplexity: CapabilityText | CapabilityJSONResponse | CapabilitySystemPrompt,
	ProviderFake:       CapabilityText | toolsCapability | CapabilitySystemPrompt,
}

// ProviderCapabilities returns the capabilities of the provider.
func ProviderCapabilities(pt ProviderType) Capability {
	return providerCapabilities[pt]
}

// Supports returns true if the provider has any of the capabilities in c.
func (p ProviderType) Supports(c Capability) bool {
	return ProviderCapabilities(p)&c != 0
}
