// Package mcptools adapts tools served by MCP servers to tools.ITool.
package mcptools

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/tools", "mcptools")

// Session is the part of *mcp.ClientSession used by the tools.
type Session interface {
	ListTools(ctx context.Context, params *mcp.ListToolsParams) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
}

var _ Session = (*mcp.ClientSession)(nil)

// Tool calls a tool on an MCP server.
type Tool struct {
	server  string
	name    string
	session Session
	tool    *mcp.Tool
	params  *jsonschema.Schema
}

var _ tools.ITool = (*Tool)(nil)

// New returns the adapter for the tool served in session.
// The name is the one exposed to the model, it may differ from tool.Name
// when several servers serve a tool with the same name.
func New(server, name string, session Session, tool *mcp.Tool) (*Tool, error) {
	if tool == nil {
		return nil, errors.New("mcp tool is required")
	}
	params, err := schema.ObjectSchema(tool.InputSchema)
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s", tool.Name)
	}
	if name == "" {
		name = tool.Name
	}
	return &Tool{
		server:  server,
		name:    name,
		session: session,
		tool:    tool,
		params:  params,
	}, nil
}

// FromSession lists all tools served in the session.
func FromSession(ctx context.Context, server string, session Session) ([]*Tool, error) {
	var list []*Tool
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to list tools from %s", server)
		}
		for _, t := range res.Tools {
			tool, err := New(server, "", session, t)
			if err != nil {
				return nil, err
			}
			list = append(list, tool)
		}
		if res.NextCursor == "" {
			break
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
	return list, nil
}

// Name implements tools.ITool.
func (t *Tool) Name() string {
	return t.name
}

// Description implements tools.ITool.
func (t *Tool) Description() string {
	return t.tool.Description
}

// Parameters implements tools.ITool.
func (t *Tool) Parameters() any {
	return t.params
}

// Server returns the name of the server serving the tool.
func (t *Tool) Server() string {
	return t.server
}

// MCPTool returns the tool as listed by the server.
func (t *Tool) MCPTool() *mcp.Tool {
	return t.tool
}

// Call implements tools.ITool.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	args := map[string]any{}
	if err := llmutils.DecodeJSON(input, &args); err != nil {
		return "", errors.WithStack(chatmodel.ErrFailedUnmarshalInput)
	}

	started := time.Now()
	defer metricskey.PerfMCPToolCall.MeasureSince(started, t.server, t.tool.Name)

	res, err := t.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      t.tool.Name,
		Arguments: args,
	})
	if err != nil {
		metricskey.StatsMCPToolCallsFailed.IncrCounter(1, t.server, t.tool.Name)
		logger.ContextKV(ctx, xlog.DEBUG,
			"server", t.server,
			"tool", t.tool.Name,
			"err", err.Error(),
		)
		return "", errors.Wrapf(err, "failed to call tool %s", t.tool.Name)
	}

	text := ResultText(res)
	if res.IsError {
		metricskey.StatsMCPToolCallsFailed.IncrCounter(1, t.server, t.tool.Name)
		return "", errors.Newf("tool %s: %s", t.tool.Name, text)
	}
	return text, nil
}

// ResultText concatenates the text content of the result. When the result
// has no text, the structured content is returned as JSON.
func ResultText(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		return llmutils.ToJSON(res.StructuredContent)
	}
	return strings.Join(parts, "\n")
}
