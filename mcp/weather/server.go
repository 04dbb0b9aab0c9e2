package weather

import (
	"context"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ServerName is the name of the weather MCP server.
const ServerName = "weather"

// AlertsInput is the input of get_alerts.
type AlertsInput struct {
	State string `json:"state" jsonschema:"Two-letter US state code (e.g. CA, NY)"`
}

// ForecastInput is the input of get_forecast.
type ForecastInput struct {
	Latitude  float64 `json:"latitude" jsonschema:"Latitude of the location"`
	Longitude float64 `json:"longitude" jsonschema:"Longitude of the location"`
}

// EchoURITemplate is the template of the echo resource.
const EchoURITemplate = "echo://{message}"

// NewServer returns the weather MCP server backed by the client.
func NewServer(client *Client) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: "1.0.0"}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_alerts",
		Description: "Get weather alerts for a US state.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AlertsInput) (*mcp.CallToolResult, any, error) {
		text, err := client.GetAlerts(ctx, in.State)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_forecast",
		Description: "Get weather forecast for a location.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ForecastInput) (*mcp.CallToolResult, any, error) {
		text, err := client.GetForecast(ctx, in.Latitude, in.Longitude)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "echo",
		Description: "Echo a message as a resource",
		URITemplate: EchoURITemplate,
		MIMEType:    "text/plain",
	}, func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      uri,
				MIMEType: "text/plain",
				Text:     EchoMessage(uri),
			}},
		}, nil
	})

	return server
}

// EchoMessage returns the content of the echo resource for the URI.
func EchoMessage(uri string) string {
	msg := strings.TrimPrefix(uri, "echo://")
	if unescaped, err := url.PathUnescape(msg); err == nil {
		msg = unescaped
	}
	return "Resource message:" + msg
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
