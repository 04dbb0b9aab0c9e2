// Package mathserver implements the math MCP server with integer tools.
package mathserver

import (
	"context"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the name of the math MCP server.
const ServerName = "math"

// Input is the input of the math tools.
type Input struct {
	A int64 `json:"a" jsonschema:"the first operand"`
	B int64 `json:"b" jsonschema:"the second operand"`
}

// Output is the structured result of the math tools.
type Output struct {
	Result int64 `json:"result"`
}

// NewServer returns the math MCP server.
func NewServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{Name: "add", Description: "Add two numbers"}, binary(func(a, b int64) int64 { return a + b }))
	mcp.AddTool(server, &mcp.Tool{Name: "multiply", Description: "Multiply two numbers"}, binary(func(a, b int64) int64 { return a * b }))

	return server
}

func binary(op func(a, b int64) int64) mcp.ToolHandlerFor[Input, Output] {
	return func(_ context.Context, _ *mcp.CallToolRequest, in Input) (*mcp.CallToolResult, Output, error) {
		res := op(in.A, in.B)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: strconv.FormatInt(res, 10)}},
		}, Output{Result: res}, nil
	}
}
