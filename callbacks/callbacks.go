// Package callbacks provides assistant callbacks that print, log, collect
// usage or fan events out to other callbacks.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var (
	_ assistants.Callback = (*Noop)(nil)
	_ assistants.Callback = (*Printer)(nil)
	_ assistants.Callback = (*Logger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
	_ assistants.Callback = (*Usage)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault prints the events
	ModeDefault Mode = iota
	// ModeVerbose prints the events with inputs, outputs and messages
	ModeVerbose
)

// Noop does nothing. Embed it to implement only some of the events.
type Noop struct{}

// NewNoop returns a callback that ignores all events.
func NewNoop() *Noop {
	return &Noop{}
}

func (Noop) OnAssistantStart(context.Context, assistants.IAssistant, string) {}
func (Noop) OnAssistantEnd(context.Context, assistants.IAssistant, string, *llms.ContentResponse, []llms.Message) {
}
func (Noop) OnAssistantError(context.Context, assistants.IAssistant, string, error, []llms.Message) {
}
func (Noop) OnAssistantLLMCallStart(context.Context, assistants.IAssistant, llms.Model, []llms.Message) {
}
func (Noop) OnAssistantLLMCallEnd(context.Context, assistants.IAssistant, llms.Model, *llms.ContentResponse) {
}
func (Noop) OnToolNotFound(context.Context, assistants.IAssistant, string)    {}
func (Noop) OnToolStart(context.Context, tools.ITool, string, string)         {}
func (Noop) OnToolEnd(context.Context, tools.ITool, string, string, string)   {}
func (Noop) OnToolError(context.Context, tools.ITool, string, string, error) {}

// Fanout forwards the events to multiple callbacks, in order.
type Fanout struct {
	callbacks []assistants.Callback
}

// NewFanout returns a callback forwarding to the callbacks, nil ones are skipped.
func NewFanout(callbacks ...assistants.Callback) *Fanout {
	f := &Fanout{}
	for _, cb := range callbacks {
		f.Add(cb)
	}
	return f
}

// Add appends the callback.
func (f *Fanout) Add(callback assistants.Callback) {
	if callback != nil {
		f.callbacks = append(f.callbacks, callback)
	}
}

func (f *Fanout) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	for _, cb := range f.callbacks {
		cb.OnAssistantStart(ctx, a, input)
	}
}

func (f *Fanout) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message) {
	for _, cb := range f.callbacks {
		cb.OnAssistantEnd(ctx, a, input, resp, messages)
	}
}

func (f *Fanout) OnAssistantError(ctx context.Context, a assistants.IAssistant, input string, err error, messages []llms.Message) {
	for _, cb := range f.callbacks {
		cb.OnAssistantError(ctx, a, input, err, messages)
	}
}

func (f *Fanout) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	for _, cb := range f.callbacks {
		cb.OnAssistantLLMCallStart(ctx, a, llm, messages)
	}
}

func (f *Fanout) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	for _, cb := range f.callbacks {
		cb.OnAssistantLLMCallEnd(ctx, a, llm, resp)
	}
}

func (f *Fanout) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	for _, cb := range f.callbacks {
		cb.OnToolNotFound(ctx, a, tool)
	}
}

func (f *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	for _, cb := range f.callbacks {
		cb.OnToolStart(ctx, tool, assistantName, input)
	}
}

func (f *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, input, output string) {
	for _, cb := range f.callbacks {
		cb.OnToolEnd(ctx, tool, assistantName, input, output)
	}
}

func (f *Fanout) OnToolError(ctx context.Context, tool tools.ITool, assistantName, input string, err error) {
	for _, cb := range f.callbacks {
		cb.OnToolError(ctx, tool, assistantName, input, err)
	}
}

// Printer writes the events to Out. Tool calls run concurrently,
// so the writes are serialized.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

// NewPrinter returns a printer callback.
func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (p *Printer) printf(format string, args ...any) {
	p.lock.Lock()
	defer p.lock.Unlock()
	fmt.Fprintf(p.Out, format, args...)
}

func (p *Printer) OnAssistantStart(_ context.Context, a assistants.IAssistant, input string) {
	p.printf("Assistant Start: %s\nInput: %s\n", a.Name(), input)
}

func (p *Printer) OnAssistantEnd(_ context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	if p.Mode == ModeVerbose {
		p.printf("Assistant End: %s, %d messages\n%s\n", a.Name(), len(messages), assistants.ResponseText(resp))
		return
	}
	p.printf("Assistant End: %s\n", a.Name())
}

func (p *Printer) OnAssistantError(_ context.Context, a assistants.IAssistant, _ string, err error, _ []llms.Message) {
	p.printf("Assistant Error: %s: %s\n", a.Name(), err.Error())
}

func (p *Printer) OnAssistantLLMCallStart(_ context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	p.lock.Lock()
	defer p.lock.Unlock()
	fmt.Fprintf(p.Out, "LLM Call: %s: %s model, %d messages\n", a.Name(), llm.GetName(), len(messages))
	if p.Mode == ModeVerbose {
		llmutils.PrintMessages(p.Out, messages)
	}
}

func (p *Printer) OnAssistantLLMCallEnd(_ context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	_, _, total := llmutils.CountTokens(resp)
	p.printf("LLM Call End: %s: %s model, %d choices, %d tokens\n", a.Name(), llm.GetName(), len(resp.Choices), total)
}

func (p *Printer) OnToolNotFound(_ context.Context, a assistants.IAssistant, tool string) {
	p.printf("Tool Not Found: %s (%s)\n", tool, a.Name())
}

func (p *Printer) OnToolStart(_ context.Context, tool tools.ITool, assistantName, input string) {
	p.printf("Tool Start: %s (%s)\nInput: %s\n", tool.Name(), assistantName, input)
}

func (p *Printer) OnToolEnd(_ context.Context, tool tools.ITool, assistantName, _ string, output string) {
	if p.Mode == ModeVerbose {
		p.printf("Tool End: %s (%s)\nOutput: %s\n", tool.Name(), assistantName, output)
		return
	}
	p.printf("Tool End: %s (%s)\n", tool.Name(), assistantName)
}

func (p *Printer) OnToolError(_ context.Context, tool tools.ITool, assistantName, _ string, err error) {
	p.printf("Tool Error: %s (%s): %s\n", tool.Name(), assistantName, err.Error())
}

// Logger writes the events to the package logger at DEBUG level,
// errors at ERROR level.
type Logger struct {
	logger *xlog.PackageLogger
}

// NewLogger returns a logger callback.
func NewLogger(logger *xlog.PackageLogger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_start",
		"assistant", a.Name(),
		"input", slices.StringUpto(input, 256),
	)
}

func (l *Logger) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "assistant_end",
		"assistant", a.Name(),
		"messages", len(messages),
		"result", slices.StringUpto(assistants.ResponseText(resp), 256),
	)
}

func (l *Logger) OnAssistantError(ctx context.Context, a assistants.IAssistant, _ string, err error, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "assistant_error",
		"assistant", a.Name(),
		"messages", len(messages),
		"err", err.Error(),
	)
}

func (l *Logger) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_start",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"messages", len(messages),
	)
}

func (l *Logger) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	in, out, total := llmutils.CountTokens(resp)
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "llm_call_end",
		"assistant", a.Name(),
		"model", llm.GetName(),
		"choices", len(resp.Choices),
		"input_tokens", in,
		"output_tokens", out,
		"total_tokens", total,
	)
}

func (l *Logger) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	l.logger.ContextKV(ctx, xlog.WARNING,
		"event", "tool_not_found",
		"assistant", a.Name(),
		"tool", tool,
	)
}

func (l *Logger) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"assistant", assistantName,
		"tool", tool.Name(),
		"input", slices.StringUpto(input, 256),
	)
}

func (l *Logger) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"assistant", assistantName,
		"tool", tool.Name(),
		"output", slices.StringUpto(output, 256),
	)
}

func (l *Logger) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"assistant", assistantName,
		"tool", tool.Name(),
		"err", err.Error(),
	)
}
