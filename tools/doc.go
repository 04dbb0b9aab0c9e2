// Package tools defines the tool interface used by assistants and graph
// agents. Tools are local Go functions, web APIs or tools exposed by MCP servers.
package tools
