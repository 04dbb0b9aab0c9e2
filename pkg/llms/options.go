package llms

import (
	"context"

	"github.com/invopop/jsonschema"
)

// CallOption is a function that configures a CallOptions.
type CallOption func(*CallOptions)

// CallOptions is a set of options for calling models. Not all models support
// all options.
type CallOptions struct {
	// Model overrides the default model of the provider.
	Model string
	// CandidateCount is the number of response candidates to generate.
	CandidateCount int
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int
	// Temperature is the temperature for sampling, between 0 and 1.
	Temperature float64
	// StopWords is a list of words to stop on.
	StopWords []string
	// StreamingFunc is called for each chunk of a streaming response.
	// Return an error to stop streaming early.
	StreamingFunc func(ctx context.Context, chunk []byte) error
	// TopK is the number of tokens to consider for top-k sampling.
	TopK int
	// TopP is the cumulative probability for top-p sampling.
	TopP float64
	// Seed is a seed for deterministic sampling.
	Seed int
	// N is how many chat completion choices to generate.
	N int
	// FrequencyPenalty is the frequency penalty for sampling.
	FrequencyPenalty float64
	// PresencePenalty is the presence penalty for sampling.
	PresencePenalty float64
	// JSONMode requests a JSON object response.
	JSONMode bool

	// Tools is a list of tools the model may call.
	Tools []Tool
	// ToolChoice is "none", "auto" (default), "required", or a ToolChoice.
	ToolChoice any

	// Metadata is passed to the provider. The meaning is provider specific.
	Metadata map[string]any
}

// Tool is a tool that can be used by the model.
type Tool struct {
	// Type is the type of the tool, "function".
	Type string `json:"type"`
	// Function is the function to call.
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition is a definition of a function that can be called by the model.
type FunctionDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	// Strict requests strict schema adherence, OpenAI only.
	Strict bool `json:"strict,omitempty"`
}

// ToolChoice forces a specific tool.
type ToolChoice struct {
	Type     string             `json:"type"`
	Function *FunctionReference `json:"function,omitempty"`
}

// FunctionReference is a reference to a function.
type FunctionReference struct {
	Name string `json:"name"`
}

const (
	// ToolChoiceNone disables tool calls.
	ToolChoiceNone = "none"
	// ToolChoiceAuto lets the model decide.
	ToolChoiceAuto = "auto"
	// ToolChoiceRequired forces at least one tool call.
	ToolChoiceRequired = "required"
)

// NewCallOptions applies the options to empty CallOptions.
func NewCallOptions(options ...CallOption) *CallOptions {
	opts := &CallOptions{}
	for _, o := range options {
		o(opts)
	}
	return opts
}

// WithModel specifies which model name to use.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

// WithMaxTokens specifies the max number of tokens to generate.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithCandidateCount specifies the number of response candidates to generate.
func WithCandidateCount(c int) CallOption {
	return func(o *CallOptions) {
		o.CandidateCount = c
	}
}

// WithTemperature specifies the model temperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
	}
}

// WithStopWords specifies a list of words to stop generation on.
func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

// WithOptions replaces all options.
func WithOptions(options CallOptions) CallOption {
	return func(o *CallOptions) {
		*o = options
	}
}

// WithStreamingFunc specifies the streaming function to use.
func WithStreamingFunc(streamingFunc func(ctx context.Context, chunk []byte) error) CallOption {
	return func(o *CallOptions) {
		o.StreamingFunc = streamingFunc
	}
}

// WithTopK will add an option to use top-k sampling.
func WithTopK(topK int) CallOption {
	return func(o *CallOptions) {
		o.TopK = topK
	}
}

// WithTopP will add an option to use top-p sampling.
func WithTopP(topP float64) CallOption {
	return func(o *CallOptions) {
		o.TopP = topP
	}
}

// WithSeed will add an option to use deterministic sampling.
func WithSeed(seed int) CallOption {
	return func(o *CallOptions) {
		o.Seed = seed
	}
}

// WithN sets how many chat completion choices to generate.
func WithN(n int) CallOption {
	return func(o *CallOptions) {
		o.N = n
	}
}

// WithFrequencyPenalty sets the frequency penalty for sampling.
func WithFrequencyPenalty(v float64) CallOption {
	return func(o *CallOptions) {
		o.FrequencyPenalty = v
	}
}

// WithPresencePenalty sets the presence penalty for sampling.
func WithPresencePenalty(v float64) CallOption {
	return func(o *CallOptions) {
		o.PresencePenalty = v
	}
}

// WithJSONMode requests a JSON object response.
func WithJSONMode() CallOption {
	return func(o *CallOptions) {
		o.JSONMode = true
	}
}

// WithToolChoice sets the choice of tool to use.
func WithToolChoice(choice any) CallOption {
	return func(o *CallOptions) {
		o.ToolChoice = choice
	}
}

// WithTools sets the tools the model may call.
func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

// WithMetadata sets provider specific metadata.
func WithMetadata(metadata map[string]any) CallOption {
	return func(o *CallOptions) {
		o.Metadata = metadata
	}
}

// ToolChoiceName returns the string form of a tool choice, or the function
// name for a ToolChoice.
func ToolChoiceName(choice any) string {
	switch c := choice.(type) {
	case string:
		return c
	case ToolChoice:
		if c.Function != nil {
			return c.Function.Name
		}
		return c.Type
	case *ToolChoice:
		if c != nil && c.Function != nil {
			return c.Function.Name
		}
	}
	return ""
}
