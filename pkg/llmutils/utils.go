// Package llmutils holds helpers to clean model output and to account for
// message sizes and token usage.
package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"gopkg.in/yaml.v3"
)

// CleanJSON trims any text before the first opening bracket and after the
// last closing bracket, models often reply with `Here you go: {json}`.
func CleanJSON(bs []byte) []byte {
	start := firstIndex(bs, '{', '[')
	if start > 0 {
		bs = bs[start:]
	}
	end := max(bytes.LastIndexByte(bs, '}'), bytes.LastIndexByte(bs, ']'))
	if end >= 0 {
		bs = bs[:end+1]
	}
	return bs
}

func firstIndex(bs []byte, a, b byte) int {
	ia := bytes.IndexByte(bs, a)
	ib := bytes.IndexByte(bs, b)
	switch {
	case ia == -1:
		return ib
	case ib == -1:
		return ia
	default:
		return min(ia, ib)
	}
}

var backtick = []byte("```")

// TrimBackticks removes a ```json or ``` fence around the text.
func TrimBackticks(text string) string {
	bs := []byte(text)
	start := bytes.Index(bs, backtick)
	if start == -1 {
		return text
	}
	start += len(backtick)
	// skip the language tag up to the new line
	for i := start; i < len(bs) && bs[i] != '{' && bs[i] != '['; i++ {
		if bs[i] == '\n' {
			start = i + 1
			break
		}
	}
	rest := bs[start:]
	if end := bytes.LastIndex(rest, backtick); end != -1 {
		rest = rest[:end]
	}
	return string(bytes.TrimSpace(rest))
}

// DecodeJSON decodes the model produced JSON into v. When the strict decode
// fails, the input is cleaned and decoded leniently.
func DecodeJSON(input string, v any) error {
	if strings.TrimSpace(input) == "" {
		input = "{}"
	}
	if err := json.Unmarshal([]byte(input), v); err == nil {
		return nil
	}
	cleaned := CleanJSON([]byte(TrimBackticks(input)))
	if err := ljson.Unmarshal(cleaned, v); err != nil {
		return errors.Wrap(err, "failed to decode JSON")
	}
	return nil
}

// ToJSON returns compact JSON of the value.
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

// ToJSONIndent returns indented JSON of the value.
func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

// ToYAML returns YAML of the value.
func ToYAML(val any) string {
	y, _ := yaml.Marshal(val)
	return string(y)
}

// BackticksJSON wraps the JSON in a fenced block.
func BackticksJSON(js string) string {
	return "\n```json\n" + strings.TrimSpace(js) + "\n```\n"
}

// Stringify returns strings and Stringers as is, and anything else as
// fenced indented JSON.
func Stringify(s any) string {
	switch v := s.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return BackticksJSON(ToJSONIndent(s))
}

// NewContentResponse returns a single choice response with the value as content.
func NewContentResponse(val any) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{Content: Stringify(val)},
		},
	}
}

// MergeInputs returns the config inputs overridden by user inputs.
func MergeInputs(configInputs map[string]any, userInputs map[string]any) map[string]any {
	res := make(map[string]any, len(configInputs)+len(userInputs))
	for k, v := range configInputs {
		res[k] = v
	}
	for k, v := range userInputs {
		res[k] = v
	}
	return res
}

// PrintMessages is a debugging helper that prints one line per part.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "%s: ", strings.ToUpper(string(m.Role)))
		for _, p := range m.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				fmt.Fprintln(w, pp.Text)
			case llms.ImageURLContent:
				fmt.Fprintln(w, pp.URL)
			case llms.BinaryContent:
				fmt.Fprintf(w, "Binary MIME=%q, size=%d\n", pp.MIMEType, len(pp.Data))
			case llms.ToolCall:
				if pp.FunctionCall != nil {
					fmt.Fprintf(w, "ToolCall ID=%s, Func=%s(%s)\n", pp.ID, pp.FunctionCall.Name, pp.FunctionCall.Arguments)
				}
			case llms.ToolCallResponse:
				fmt.Fprintf(w, "ToolCallResponse ID=%s, Name=%s, Content=%s\n", pp.ToolCallID, pp.Name, pp.Content)
			}
		}
	}
}

// CountMessagesContentSize returns the number of bytes in the messages.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size int
	for _, m := range msgs {
		size += len(m.Role)
		for _, p := range m.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				size += len(pp.Text)
			case llms.ImageURLContent:
				size += len(pp.URL) + len(pp.Detail)
			case llms.BinaryContent:
				size += len(pp.MIMEType) + len(pp.Data)
			case llms.ToolCall:
				size += toolCallSize(pp)
			case llms.ToolCallResponse:
				size += len(pp.ToolCallID) + len(pp.Name) + len(pp.Content)
			}
		}
	}
	return uint64(size)
}

// CountResponseContentSize returns the number of bytes in the response.
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	var size int
	for _, choice := range resp.Choices {
		size += len(choice.Content) + len(choice.ReasoningContent)
		for _, tc := range choice.ToolCalls {
			size += toolCallSize(tc)
		}
	}
	return uint64(size)
}

func toolCallSize(tc llms.ToolCall) int {
	size := len(tc.ID) + len(tc.Type)
	if tc.FunctionCall != nil {
		size += len(tc.FunctionCall.Name) + len(tc.FunctionCall.Arguments)
	}
	return size
}

// CountTokens sums the token usage reported in GenerationInfo.
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	for _, choice := range resp.Choices {
		ma := values.MapAny(choice.GenerationInfo)
		in += ma.Int64("InputTokens")
		out += ma.Int64("OutputTokens")
		total += ma.Int64("TotalTokens")
	}
	return
}

// FindLastUserQuestion returns the text of the last human message.
func FindLastUserQuestion(messages []llms.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != llms.RoleHuman {
			continue
		}
		for _, part := range messages[i].Parts {
			if tp, ok := part.(llms.TextContent); ok {
				return tp.Text
			}
		}
	}
	return ""
}

// EnsureEndsWithNewline trims spaces and ensures a non-empty string ends with a newline.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
