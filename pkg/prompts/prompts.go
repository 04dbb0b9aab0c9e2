// Package prompts renders system and chat prompts from templates.
//
// Two template formats are supported: Go text/template with the sprig
// function map, and Jinja2 rendered by gonja.
package prompts

import (
	"strings"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
)

// PromptValue is the result of formatting a prompt.
type PromptValue interface {
	String() string
	Messages() []llms.Message
}

// FormatPrompter is implemented by prompt templates.
type FormatPrompter interface {
	FormatPrompt(values map[string]any) (PromptValue, error)
	GetInputVariables() []string
}

// StringPromptValue is a prompt rendered to a single string.
type StringPromptValue string

func (v StringPromptValue) String() string {
	return string(v)
}

// Messages returns a single human message.
func (v StringPromptValue) Messages() []llms.Message {
	return []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, string(v))}
}

// ChatPromptValue is a prompt rendered to a list of messages.
type ChatPromptValue []llms.Message

// String prints the messages one per line.
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the messages.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}
