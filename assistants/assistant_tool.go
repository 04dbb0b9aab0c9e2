package assistants

import (
	"context"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/mcpagent/tools"
)

// IAssistantTool is a tool backed by an assistant. The options of the
// parent call are passed to the nested assistant.
type IAssistantTool interface {
	tools.ITool
	CallAssistant(ctx context.Context, input string, options ...Option) (string, error)
}

// ToolInput is the input of an assistant used as a tool.
type ToolInput struct {
	Input string `json:"input" yaml:"input" jsonschema:"title=Input,description=The request for the assistant."`
}

// AssistantTool exposes an assistant to another assistant as a tool.
type AssistantTool struct {
	assistant   IAssistant
	name        string
	description string
	funcParams  any
}

var _ IAssistantTool = (*AssistantTool)(nil)

// NewAssistantTool returns the tool with the name and description of the assistant.
func NewAssistantTool(assistant IAssistant) (*AssistantTool, error) {
	sc, err := schema.New(reflect.TypeOf(ToolInput{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &AssistantTool{
		assistant:   assistant,
		name:        assistant.Name(),
		description: assistant.Description(),
		funcParams:  sc.Parameters,
	}, nil
}

// WithName sets the name of the tool.
func (t *AssistantTool) WithName(name string) *AssistantTool {
	t.name = name
	return t
}

// WithDescription sets the description of the tool.
func (t *AssistantTool) WithDescription(description string) *AssistantTool {
	t.description = description
	return t
}

func (t *AssistantTool) Name() string {
	return t.name
}

func (t *AssistantTool) Description() string {
	return t.description
}

func (t *AssistantTool) Parameters() any {
	return t.funcParams
}

func (t *AssistantTool) Call(ctx context.Context, input string) (string, error) {
	return t.CallAssistant(ctx, input)
}

// CallAssistant accepts {"input": "..."} or plain text.
func (t *AssistantTool) CallAssistant(ctx context.Context, input string, options ...Option) (string, error) {
	var tin ToolInput
	if strings.HasPrefix(strings.TrimSpace(llmutils.TrimBackticks(input)), "{") {
		if err := llmutils.DecodeJSON(input, &tin); err != nil {
			return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
		}
	} else {
		tin.Input = input
	}
	if strings.TrimSpace(tin.Input) == "" {
		return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}

	resp, err := t.assistant.Call(ctx, &CallInput{
		Input:   tin.Input,
		Options: options,
	})
	if err != nil {
		return "", err
	}
	return ResponseText(resp), nil
}
