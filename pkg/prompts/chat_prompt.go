package prompts

import (
	"slices"

	"github.com/effective-security/mcpagent/pkg/llms"
)

// MessageFormatter renders one message of a chat prompt.
type MessageFormatter interface {
	FormatMessage(values map[string]any) (llms.Message, error)
	GetInputVariables() []string
}

// MessagePromptTemplate renders a message with a role.
type MessagePromptTemplate struct {
	Role   llms.Role
	Prompt PromptTemplate
}

// FormatMessage renders the message.
func (m MessagePromptTemplate) FormatMessage(values map[string]any) (llms.Message, error) {
	text, err := m.Prompt.Format(values)
	if err != nil {
		return llms.Message{}, err
	}
	return llms.MessageFromTextParts(m.Role, text), nil
}

// GetInputVariables returns the input variables of the prompt.
func (m MessagePromptTemplate) GetInputVariables() []string {
	return m.Prompt.GetInputVariables()
}

// NewSystemMessagePromptTemplate returns a system message template.
func NewSystemMessagePromptTemplate(tmpl string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleSystem, Prompt: NewPromptTemplate(tmpl, inputVars)}
}

// NewHumanMessagePromptTemplate returns a human message template.
func NewHumanMessagePromptTemplate(tmpl string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleHuman, Prompt: NewPromptTemplate(tmpl, inputVars)}
}

// NewAIMessagePromptTemplate returns an AI message template.
func NewAIMessagePromptTemplate(tmpl string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleAI, Prompt: NewPromptTemplate(tmpl, inputVars)}
}

// ChatPromptTemplate renders a sequence of messages.
type ChatPromptTemplate struct {
	Messages []MessageFormatter
}

var _ FormatPrompter = ChatPromptTemplate{}

// NewChatPromptTemplate returns a chat prompt from message formatters.
func NewChatPromptTemplate(messages []MessageFormatter) ChatPromptTemplate {
	return ChatPromptTemplate{Messages: messages}
}

// FormatMessages renders all messages.
func (c ChatPromptTemplate) FormatMessages(values map[string]any) ([]llms.Message, error) {
	res := make([]llms.Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		msg, err := m.FormatMessage(values)
		if err != nil {
			return nil, err
		}
		res = append(res, msg)
	}
	return res, nil
}

// FormatPrompt renders the messages to a ChatPromptValue.
func (c ChatPromptTemplate) FormatPrompt(values map[string]any) (PromptValue, error) {
	msgs, err := c.FormatMessages(values)
	if err != nil {
		return nil, err
	}
	return ChatPromptValue(msgs), nil
}

// GetInputVariables returns the distinct input variables of all messages.
func (c ChatPromptTemplate) GetInputVariables() []string {
	var vars []string
	for _, m := range c.Messages {
		for _, v := range m.GetInputVariables() {
			if !slices.Contains(vars, v) {
				vars = append(vars, v)
			}
		}
	}
	return vars
}
