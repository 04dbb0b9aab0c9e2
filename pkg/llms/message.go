package llms

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnexpectedRole is returned when a message role is of an unexpected type.
var ErrUnexpectedRole = errors.New("unexpected role")

// Role is the author of a chat message.
type Role string

const (
	// RoleAI is a message produced by the model.
	RoleAI Role = "ai"
	// RoleHuman is a message sent by the user.
	RoleHuman Role = "human"
	// RoleSystem is the system prompt.
	RoleSystem Role = "system"
	// RoleGeneric is a message with a role unknown to the provider.
	RoleGeneric Role = "generic"
	// RoleTool is an observation returned by a tool.
	RoleTool Role = "tool"
)

// Message is one entry of a conversation sent to a model.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is implemented by all parts of a message.
type ContentPart interface {
	isPart()
}

// TextContent is a text part.
type TextContent struct {
	Text string `json:"text"`
}

func (tc TextContent) String() string { return tc.Text }
func (TextContent) isPart()           {}

// ImageURLContent is an image referenced by URL.
type ImageURLContent struct {
	URL string `json:"url"`
	// Detail is provider specific, e.g. "low" or "high".
	Detail string `json:"detail,omitempty"`
}

func (c ImageURLContent) String() string { return c.URL }
func (ImageURLContent) isPart()          {}

// BinaryContent is inline binary data with a MIME type.
type BinaryContent struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// String returns the data URL form of the content.
func (c BinaryContent) String() string {
	return "data:" + c.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(c.Data)
}

func (BinaryContent) isPart() {}

// FunctionCall is the name and JSON encoded arguments of a function call.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID string `json:"id"`
	// Type is "function" for all supported providers.
	Type         string        `json:"type"`
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

func (tc ToolCall) String() string {
	if tc.FunctionCall == nil {
		return "ToolCall: " + tc.ID
	}
	return fmt.Sprintf("ToolCall: %s (%s), input: %s", tc.ID, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
}

func (ToolCall) isPart() {}

// ToolCallResponse is the result of a tool call, matched by ToolCallID.
type ToolCallResponse struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}

func (tr ToolCallResponse) String() string {
	return fmt.Sprintf("ToolCallResponse: %s (%s), response size: %d", tr.ToolCallID, tr.Name, len(tr.Content))
}

func (ToolCallResponse) isPart() {}

// TextPart creates TextContent from a given string.
func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

// BinaryPart creates BinaryContent from a MIME type and data.
func BinaryPart(mime string, data []byte) BinaryContent {
	return BinaryContent{MIMEType: mime, Data: data}
}

// ImageURLPart creates ImageURLContent from the given URL.
func ImageURLPart(url string) ImageURLContent {
	return ImageURLContent{URL: url}
}

// ContentResponse is the response returned by a GenerateContent call.
type ContentResponse struct {
	Choices []*ContentChoice
}

// ContentChoice is one of the response choices returned by GenerateContent.
type ContentChoice struct {
	// Content is the textual content of a response
	Content string `json:"content"`
	// StopReason is the provider reason the model stopped generating output.
	StopReason string `json:"stop_reason"`
	// GenerationInfo holds provider specific details, including token usage
	// under InputTokens, OutputTokens and TotalTokens.
	GenerationInfo map[string]any `json:"generation_info"`
	// ToolCalls is a list of tool calls the model asks to invoke.
	ToolCalls []ToolCall `json:"tool_calls"`
	// ReasoningContent is the reasoning emitted before the final answer, if any.
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// MessageFromParts creates a Message with a role and a list of parts.
func MessageFromParts(role Role, parts ...ContentPart) Message {
	return Message{Role: role, Parts: parts}
}

// MessageFromTextParts creates a Message with a role and text parts.
func MessageFromTextParts(role Role, parts ...string) Message {
	m := Message{
		Role:  role,
		Parts: make([]ContentPart, 0, len(parts)),
	}
	for _, p := range parts {
		m.Parts = append(m.Parts, TextPart(p))
	}
	return m
}

// MessageFromToolCalls creates a Message holding copies of the tool calls.
func MessageFromToolCalls(role Role, calls ...ToolCall) Message {
	m := Message{
		Role:  role,
		Parts: make([]ContentPart, 0, len(calls)),
	}
	for _, tc := range calls {
		c := ToolCall{ID: tc.ID, Type: tc.Type}
		if tc.FunctionCall != nil {
			fc := *tc.FunctionCall
			c.FunctionCall = &fc
		}
		m.Parts = append(m.Parts, c)
	}
	return m
}

// MessageFromToolResponse creates a Message with a single tool response.
func MessageFromToolResponse(role Role, resp ToolCallResponse) Message {
	return MessageFromParts(role, resp)
}

// ToolCalls returns the tool call parts of the message.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range m.Parts {
		if tc, ok := p.(ToolCall); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// HasToolCalls returns true if the message requests at least one tool call.
func (m Message) HasToolCalls() bool {
	for _, p := range m.Parts {
		if _, ok := p.(ToolCall); ok {
			return true
		}
	}
	return false
}

// GetContent returns a printable form of all parts, each on its own line.
func (m Message) GetContent() string {
	var buf strings.Builder
	for _, p := range m.Parts {
		var line string
		switch typ := p.(type) {
		case TextContent:
			line = typ.Text
		case ImageURLContent:
			line = "URL: " + typ.URL
		case BinaryContent:
			line = "Binary: " + typ.MIMEType + "\n" + base64.StdEncoding.EncodeToString(typ.Data)
		case ToolCall:
			line = "Tool Call: " + string(mustMarshalPart(typ))
		case ToolCallResponse:
			line = "Response: " + string(mustMarshalPart(typ))
		}
		buf.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			buf.WriteString("\n")
		}
	}
	return buf.String()
}
