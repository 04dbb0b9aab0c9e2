package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/tools"
)

// TimeNowFn is the clock used for transcript timestamps.
var TimeNowFn = time.Now

// RunStats are the counters of one run.
type RunStats struct {
	TenantID string
	ChatID   string

	Duration           time.Duration
	MessagesSent       uint32
	LLMCalls           uint32
	LLMBytesOut        uint64
	LLMBytesIn         uint64
	LLMInputTokens     uint64
	LLMOutputTokens    uint64
	LLMTotalTokens     uint64
	AssistantCalls     uint32
	AssistantFailed    uint32
	ToolCalls          uint32
	ToolCallsSucceeded uint32
	ToolCallsFailed    uint32
	ToolNotFound       uint32
}

// String returns a one line summary.
func (s *RunStats) String() string {
	return fmt.Sprintf("assistant calls: %d (failed %d), llm calls: %d, messages: %d, bytes out/in: %d/%d, tokens in/out/total: %d/%d/%d, tool calls: %d (failed %d, not found %d), duration: %s",
		s.AssistantCalls, s.AssistantFailed,
		s.LLMCalls, s.MessagesSent,
		s.LLMBytesOut, s.LLMBytesIn,
		s.LLMInputTokens, s.LLMOutputTokens, s.LLMTotalTokens,
		s.ToolCalls, s.ToolCallsFailed, s.ToolNotFound,
		s.Duration.Round(time.Millisecond),
	)
}

// Usage collects per chat counters and a timestamped transcript
// between Begin and End. Events of chats without a started run are ignored.
type Usage struct {
	mode Mode

	lock sync.Mutex
	runs map[string]*usageRun
}

// NewUsage returns the usage collector.
func NewUsage(mode Mode) *Usage {
	return &Usage{
		mode: mode,
		runs: make(map[string]*usageRun),
	}
}

type usageRun struct {
	stats   RunStats
	started time.Time

	lock sync.Mutex
	w    bytes.Buffer
}

// print writes "<timestamp> <chat_id> entry entry" to the transcript.
func (r *usageRun) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	fmt.Fprintf(&r.w, "%s %s %s\n",
		TimeNowFn().Format("2006-01-02 15:04:05"),
		r.stats.ChatID,
		strings.Join(entries, " "))
}

// Begin starts collecting for the chat of ctx.
func (u *Usage) Begin(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	r := &usageRun{
		stats:   RunStats{TenantID: tenantID, ChatID: chatID},
		started: TimeNowFn(),
	}
	u.lock.Lock()
	u.runs[chatID] = r
	u.lock.Unlock()

	r.print("*** Run Started ***")
	return nil
}

// End stops collecting for the chat of ctx and returns the stats and the
// transcript, or nil if no run was started.
func (u *Usage) End(ctx context.Context) (*RunStats, []byte) {
	r := u.get(ctx)
	if r == nil {
		return nil, nil
	}
	u.lock.Lock()
	delete(u.runs, r.stats.ChatID)
	u.lock.Unlock()

	stats := r.stats
	stats.Duration = TimeNowFn().Sub(r.started)
	r.print("*** Run Ended ***", stats.String())

	r.lock.Lock()
	defer r.lock.Unlock()
	return &stats, bytes.Clone(r.w.Bytes())
}

func (u *Usage) get(ctx context.Context) *usageRun {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil
	}
	u.lock.Lock()
	defer u.lock.Unlock()
	return u.runs[chatID]
}

func (u *Usage) OnAssistantStart(ctx context.Context, a assistants.IAssistant, input string) {
	if r := u.get(ctx); r != nil {
		atomic.AddUint32(&r.stats.AssistantCalls, 1)
		r.print(a.Name(), "*** Assistant Start ***", input)
	}
}

func (u *Usage) OnAssistantEnd(ctx context.Context, a assistants.IAssistant, _ string, resp *llms.ContentResponse, messages []llms.Message) {
	r := u.get(ctx)
	if r == nil {
		return
	}
	if u.mode == ModeVerbose {
		r.print(a.Name(), "Output:", assistants.ResponseText(resp))
		r.print(a.Name(), describeMessages(messages))
	}
	r.print(a.Name(), "*** Assistant End ***")
}

func (u *Usage) OnAssistantError(ctx context.Context, a assistants.IAssistant, _ string, err error, messages []llms.Message) {
	r := u.get(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.AssistantFailed, 1)
	r.print(a.Name(), "*** Error ***", err.Error())
	r.print(a.Name(), describeMessages(messages))
}

func (u *Usage) OnAssistantLLMCallStart(ctx context.Context, a assistants.IAssistant, llm llms.Model, messages []llms.Message) {
	r := u.get(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.LLMCalls, 1)
	atomic.AddUint32(&r.stats.MessagesSent, uint32(len(messages)))
	atomic.AddUint64(&r.stats.LLMBytesOut, llmutils.CountMessagesContentSize(messages))
	r.print(a.Name(), "*** LLM Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), len(messages)))
	if u.mode == ModeVerbose {
		r.print(a.Name(), describeMessages(messages))
	}
}

func (u *Usage) OnAssistantLLMCallEnd(ctx context.Context, a assistants.IAssistant, llm llms.Model, resp *llms.ContentResponse) {
	r := u.get(ctx)
	if r == nil {
		return
	}
	in, out, total := llmutils.CountTokens(resp)
	atomic.AddUint64(&r.stats.LLMBytesIn, llmutils.CountResponseContentSize(resp))
	atomic.AddUint64(&r.stats.LLMInputTokens, uint64(in))
	atomic.AddUint64(&r.stats.LLMOutputTokens, uint64(out))
	atomic.AddUint64(&r.stats.LLMTotalTokens, uint64(total))
	r.print(a.Name(), "*** LLM Call End ***", fmt.Sprintf("%s model, %d/%d/%d tokens", llm.GetName(), in, out, total))
}

func (u *Usage) OnToolNotFound(ctx context.Context, a assistants.IAssistant, tool string) {
	if r := u.get(ctx); r != nil {
		atomic.AddUint32(&r.stats.ToolNotFound, 1)
		r.print(a.Name(), "*** Tool Not Found ***", tool)
	}
}

func (u *Usage) OnToolStart(ctx context.Context, tool tools.ITool, assistantName, input string) {
	if r := u.get(ctx); r != nil {
		atomic.AddUint32(&r.stats.ToolCalls, 1)
		r.print(assistantName, tool.Name(), "*** Tool Start ***", input)
	}
}

func (u *Usage) OnToolEnd(ctx context.Context, tool tools.ITool, assistantName, _ string, output string) {
	r := u.get(ctx)
	if r == nil {
		return
	}
	atomic.AddUint32(&r.stats.ToolCallsSucceeded, 1)
	if u.mode == ModeVerbose {
		r.print(assistantName, tool.Name(), "Output:", output)
	}
	r.print(assistantName, tool.Name(), "*** Tool End ***")
}

func (u *Usage) OnToolError(ctx context.Context, tool tools.ITool, assistantName, _ string, err error) {
	if r := u.get(ctx); r != nil {
		atomic.AddUint32(&r.stats.ToolCallsFailed, 1)
		r.print(assistantName, tool.Name(), "*** Tool Error ***", err.Error())
	}
}

// describeMessages lists the role and part counts of each message,
// with tool calls and responses in full.
func describeMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		var texts, calls, responses int
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				texts++
			case llms.ToolCall:
				calls++
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			case llms.ToolCallResponse:
				responses++
				fmt.Fprintf(&buf, "  - %s\n", typ.String())
			}
		}
		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", texts, calls, responses)
	}
	return buf.String()
}
