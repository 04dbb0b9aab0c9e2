package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "assistants")

// IAssistant is a named agent that answers a user turn.
type IAssistant interface {
	// Name returns the name of the Assistant.
	Name() string
	// Description returns the description of the Assistant, to be used in the prompt of other Assistants or LLMs.
	// Should not exceed LLM model limit.
	Description() string
	// FormatPrompt renders the system prompt with the inputs.
	FormatPrompt(values map[string]any) (prompts.PromptValue, error)
	GetPromptInputVariables() []string

	Call(ctx context.Context, input *CallInput) (*llms.ContentResponse, error)
}

// Callback receives assistant and tool events.
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, a IAssistant, input string)
	OnAssistantEnd(ctx context.Context, a IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, a IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMCallStart(ctx context.Context, a IAssistant, llm llms.Model, messages []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, a IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, a IAssistant, tool string)
}

// CallInput is a single user turn.
type CallInput struct {
	// Input is the user message, may be empty when Messages are provided.
	Input string
	// PromptInputs are merged over the configured prompt inputs.
	PromptInputs map[string]any
	// Messages are appended after the user message.
	Messages []llms.Message
	// Options override the assistant config for this call.
	Options []Option
}

// GetDescriptions returns a markdown list of the assistants.
func GetDescriptions(list ...IAssistant) string {
	var ts strings.Builder
	for _, item := range list {
		fmt.Fprintf(&ts, "- `%s`: %s\n", item.Name(), item.Description())
	}
	return ts.String()
}

// MapAssistants returns the assistants keyed by name.
func MapAssistants(list ...IAssistant) map[string]IAssistant {
	m := make(map[string]IAssistant, len(list))
	for _, item := range list {
		m[item.Name()] = item
	}
	return m
}
