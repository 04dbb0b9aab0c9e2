package assistants

import (
	"context"
	"maps"
	"slices"

	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/store"
)

const (
	// DefaultMaxSteps is the number of model calls allowed per run.
	DefaultMaxSteps = 30
	// DefaultMaxMessages is the number of messages allowed in a request.
	DefaultMaxMessages = 100
	// DefaultMaxToolCalls is the number of tool calls allowed per run.
	DefaultMaxToolCalls = 40
	// DefaultMaxContentSize is the content size in bytes allowed in a request.
	DefaultMaxContentSize = 1024 * 1024
	// DefaultMaxRetries is the number of retries on an empty model response.
	DefaultMaxRetries = 3
)

// Option is a function that can be used to modify the behavior of the Assistant Config.
type Option func(*Config)

// Config controls the loop limits, the history and the LLM call options.
type Config struct {
	// Model is the model to use in an LLM call.
	Model    string
	modelSet bool

	// MaxTokens is the maximum number of tokens to generate to use in an LLM call.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the temperature for sampling to use in an LLM call, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// StopWords is a list of words to stop on to use in an LLM call.
	StopWords    []string
	stopWordsSet bool

	// TopK is the number of tokens to consider for top-k sampling in an LLM call.
	TopK    int
	topkSet bool

	// TopP is the cumulative probability for top-p sampling in an LLM call.
	TopP    float64
	toppSet bool

	// Seed is a seed for deterministic sampling in an LLM call.
	Seed    int
	seedSet bool

	// ToolChoice is "none", "auto" (the default behavior), "required", or a specific tool.
	ToolChoice    any
	toolChoiceSet bool

	JSONMode bool

	// StreamingFunc is a function to be called for each chunk of a streaming response.
	// Return an error to stop streaming early.
	StreamingFunc func(ctx context.Context, chunk []byte) error

	//
	// Below are the options for the Assistant, not related to LLM call
	//

	// MaxSteps is the maximum number of model calls per run.
	MaxSteps int
	// MaxMessages is the maximum number of messages sent to the model.
	MaxMessages int
	// MaxLength is the maximum content size in bytes sent to the model.
	MaxLength int
	// MaxToolCalls is the maximum number of tool calls per run.
	MaxToolCalls int

	// CallbackHandler receives the assistant and tool events.
	CallbackHandler Callback

	Store              store.MessageStore
	PromptInput        map[string]any
	Examples           chatmodel.FewShotExamples
	SkipMessageHistory bool
	SkipToolHistory    bool
}

// NewConfig returns the config with defaults and the options applied.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxSteps:     DefaultMaxSteps,
		MaxMessages:  DefaultMaxMessages,
		MaxLength:    DefaultMaxContentSize,
		MaxToolCalls: DefaultMaxToolCalls,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	cfg.StopWords = slices.Clone(c.StopWords)
	cfg.PromptInput = maps.Clone(c.PromptInput)
	cfg.Examples = slices.Clone(c.Examples)
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithMaxSteps limits the number of model calls per run.
func WithMaxSteps(n int) Option {
	return func(o *Config) {
		o.MaxSteps = n
	}
}

// WithMaxMessages limits the number of messages sent to the model.
func WithMaxMessages(n int) Option {
	return func(o *Config) {
		o.MaxMessages = n
	}
}

// WithMaxLength limits the content size in bytes sent to the model.
func WithMaxLength(n int) Option {
	return func(o *Config) {
		o.MaxLength = n
	}
}

// WithMaxToolCalls limits the number of tool calls per run.
func WithMaxToolCalls(n int) Option {
	return func(o *Config) {
		o.MaxToolCalls = n
	}
}

// WithStore sets the message history store.
func WithStore(s store.MessageStore) Option {
	return func(o *Config) {
		o.Store = s
	}
}

// WithExamples is an option that allows to specify the few-shot examples for the system prompt.
func WithExamples(examples chatmodel.FewShotExamples) Option {
	return func(o *Config) {
		o.Examples = examples
	}
}

// WithSkipMessageHistory is an option that allows to skip adding Assistant messages to History.
func WithSkipMessageHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipMessageHistory = skip
	}
}

// WithSkipToolHistory skips tool calls and responses when saving History.
func WithSkipToolHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipToolHistory = skip
	}
}

// WithPromptInput is an option that allows the user to specify the system prompt input.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithJSONMode is an option for LLM.Call that allows the user to specify whether to use JSON mode.
func WithJSONMode(jsonMode bool) Option {
	return func(o *Config) {
		o.JSONMode = jsonMode
	}
}

// WithModel is an option for LLM.Call.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens is an option for LLM.Call.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature is an option for LLM.Call.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithStreamingFunc is an option for LLM.Call that allows streaming responses.
func WithStreamingFunc(streamingFunc func(ctx context.Context, chunk []byte) error) Option {
	return func(o *Config) {
		o.StreamingFunc = streamingFunc
	}
}

// WithTopK will add an option to use top-k sampling for LLM.Call.
func WithTopK(topK int) Option {
	return func(o *Config) {
		o.TopK = topK
		o.topkSet = true
	}
}

// WithTopP will add an option to use top-p sampling for LLM.Call.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithSeed will add an option to use deterministic sampling for LLM.Call.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithStopWords is an option for setting the stop words for LLM.Call.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
		o.stopWordsSet = true
	}
}

// WithCallback allows setting a custom Callback Handler.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithToolChoice is an option for LLM.Call.
func WithToolChoice(choice any) Option {
	return func(o *Config) {
		o.ToolChoice = choice
		o.toolChoiceSet = true
	}
}

// GetCallOptions returns the LLM call options for the set fields,
// followed by extra.
func (c *Config) GetCallOptions(extra ...llms.CallOption) []llms.CallOption {
	var opts []llms.CallOption
	if c.modelSet {
		opts = append(opts, llms.WithModel(c.Model))
	}
	if c.maxTokensSet {
		opts = append(opts, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.temperatureSet {
		opts = append(opts, llms.WithTemperature(c.Temperature))
	}
	if c.stopWordsSet {
		opts = append(opts, llms.WithStopWords(c.StopWords))
	}
	if c.topkSet {
		opts = append(opts, llms.WithTopK(c.TopK))
	}
	if c.toppSet {
		opts = append(opts, llms.WithTopP(c.TopP))
	}
	if c.seedSet {
		opts = append(opts, llms.WithSeed(c.Seed))
	}
	if c.toolChoiceSet {
		opts = append(opts, llms.WithToolChoice(c.ToolChoice))
	}
	if c.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}
	if c.StreamingFunc != nil {
		opts = append(opts, llms.WithStreamingFunc(c.StreamingFunc))
	}
	return append(opts, extra...)
}
