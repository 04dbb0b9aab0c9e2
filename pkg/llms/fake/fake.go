// Package fake provides a scripted llms.Model for tests and offline runs.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
)

// ErrExhausted is returned when all scripted responses were consumed.
var ErrExhausted = errors.New("fake: no more responses")

// LLM replays scripted responses in order and records the requests.
type LLM struct {
	name     string
	provider llms.ProviderType
	repeat   bool

	lock      sync.Mutex
	responses []*llms.ContentResponse
	next      int
	calls     [][]llms.Message
	options   []*llms.CallOptions
}

var _ llms.Model = (*LLM)(nil)

// Option configures the fake model.
type Option func(*LLM)

// WithName sets the model name, "fake" by default.
func WithName(name string) Option {
	return func(l *LLM) {
		l.name = name
	}
}

// WithProviderType sets the reported provider type, FAKE by default.
func WithProviderType(pt llms.ProviderType) Option {
	return func(l *LLM) {
		l.provider = pt
	}
}

// WithRepeatLast replays the last response once the script is exhausted.
func WithRepeatLast() Option {
	return func(l *LLM) {
		l.repeat = true
	}
}

// New returns a model that replies with responses in order.
func New(responses []*llms.ContentResponse, opts ...Option) *LLM {
	l := &LLM{
		name:      "fake",
		provider:  llms.ProviderFake,
		responses: responses,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// GetName implements llms.Model.
func (l *LLM) GetName() string {
	return l.name
}

// GetProviderType implements llms.Model.
func (l *LLM) GetProviderType() llms.ProviderType {
	return l.provider
}

// GenerateContent returns the next scripted response.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)

	l.lock.Lock()
	l.calls = append(l.calls, slices.Clone(messages))
	l.options = append(l.options, opts)

	var resp *llms.ContentResponse
	switch {
	case l.next < len(l.responses):
		resp = l.responses[l.next]
		l.next++
	case l.repeat && len(l.responses) > 0:
		resp = l.responses[len(l.responses)-1]
	}
	l.lock.Unlock()

	if resp == nil {
		return nil, ErrExhausted
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if opts.StreamingFunc != nil && len(resp.Choices) > 0 && resp.Choices[0].Content != "" {
		if err := opts.StreamingFunc(ctx, []byte(resp.Choices[0].Content)); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Calls returns the messages of each GenerateContent call.
func (l *LLM) Calls() [][]llms.Message {
	l.lock.Lock()
	defer l.lock.Unlock()
	return slices.Clone(l.calls)
}

// CallOptions returns the options of each GenerateContent call.
func (l *LLM) CallOptions() []*llms.CallOptions {
	l.lock.Lock()
	defer l.lock.Unlock()
	return slices.Clone(l.options)
}

// Reset rewinds the script and clears recorded calls.
func (l *LLM) Reset() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.next = 0
	l.calls = nil
	l.options = nil
}

// TextResponse returns a single choice response with the text.
func TextResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        text,
			StopReason:     "stop",
			GenerationInfo: usage(len(text)),
		}},
	}
}

// ToolCallResponse returns a single choice response requesting the calls.
// Calls without an ID get a positional one.
func ToolCallResponse(calls ...llms.ToolCall) *llms.ContentResponse {
	res := make([]llms.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d", i+1)
		}
		if c.Type == "" {
			c.Type = "function"
		}
		res[i] = c
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			StopReason:     "tool_calls",
			ToolCalls:      res,
			GenerationInfo: usage(0),
		}},
	}
}

// Call is a shorthand for a function tool call.
func Call(name, arguments string) llms.ToolCall {
	return llms.ToolCall{
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: arguments},
	}
}

func usage(out int) map[string]any {
	return map[string]any{
		"InputTokens":  int64(0),
		"OutputTokens": int64(out),
		"TotalTokens":  int64(out),
	}
}
