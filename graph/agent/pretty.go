package agent

import (
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/tidwall/gjson"
)

const titleWidth = 80

var titles = map[llms.Role]string{
	llms.RoleAI:      "Ai Message",
	llms.RoleHuman:   "Human Message",
	llms.RoleSystem:  "System Message",
	llms.RoleTool:    "Tool Message",
	llms.RoleGeneric: "Generic Message",
}

// Title returns the title centered in a line of '='.
func Title(title string) string {
	padded := " " + title + " "
	n := (titleWidth - len(padded)) / 2
	if n < 0 {
		n = 0
	}
	sep := strings.Repeat("=", n)
	second := sep
	if len(padded)%2 == 1 {
		second += "="
	}
	return sep + padded + second
}

// PrettyPrint writes each message with a title line, the text, the tool
// calls with their arguments and the tool responses.
func PrettyPrint(w io.Writer, messages []llms.Message) {
	for _, m := range messages {
		prettyPrint(w, m)
	}
}

func prettyPrint(w io.Writer, m llms.Message) {
	title, ok := titles[m.Role]
	if !ok {
		title = string(m.Role) + " Message"
	}
	fmt.Fprintf(w, "%s\n", Title(title))

	var texts []string
	var calls []llms.ToolCall
	var responses []llms.ToolCallResponse
	for _, p := range m.Parts {
		switch typ := p.(type) {
		case llms.TextContent:
			texts = append(texts, typ.Text)
		case llms.ToolCall:
			calls = append(calls, typ)
		case llms.ToolCallResponse:
			responses = append(responses, typ)
		case llms.ImageURLContent:
			texts = append(texts, "URL: "+typ.URL)
		case llms.BinaryContent:
			texts = append(texts, "Binary: "+typ.MIMEType)
		}
	}

	for _, r := range responses {
		fmt.Fprintf(w, "Name: %s\n\n%s\n", r.Name, r.Content)
	}
	if len(texts) > 0 {
		fmt.Fprintf(w, "\n%s\n", strings.Join(texts, "\n"))
	}
	if len(calls) > 0 {
		fmt.Fprintln(w, "Tool Calls:")
		for _, tc := range calls {
			fmt.Fprintf(w, "  %s (%s)\n Call ID: %s\n  Args:\n", tc.FunctionCall.Name, tc.ID, tc.ID)
			args := gjson.Parse(tc.FunctionCall.Arguments)
			if !args.IsObject() {
				fmt.Fprintf(w, "    %s\n", tc.FunctionCall.Arguments)
				continue
			}
			args.ForEach(func(key, value gjson.Result) bool {
				fmt.Fprintf(w, "    %s: %s\n", key.String(), value.String())
				return true
			})
		}
	}
}
