package mcpserver_test

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/effective-security/mcpagent/mcp/mathserver"
	"github.com/effective-security/mcpagent/mcp/mcpconfig"
	"github.com/effective-security/mcpagent/mcp/mcpserver"
	"github.com/effective-security/mcpagent/tools/mcptools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Serve(t *testing.T) {
	tcases := []struct {
		transport string
		path      string
		client    func(endpoint string) mcp.Transport
	}{
		{
			transport: mcpconfig.TransportStreamableHTTP,
			path:      mcpserver.DefaultStreamablePath,
			client: func(endpoint string) mcp.Transport {
				return &mcp.StreamableClientTransport{Endpoint: endpoint}
			},
		},
		{
			transport: mcpconfig.TransportSSE,
			path:      mcpserver.DefaultSSEPath,
			client: func(endpoint string) mcp.Transport {
				return &mcp.SSEClientTransport{Endpoint: endpoint}
			},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.transport, func(t *testing.T) {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() {
				done <- mcpserver.Serve(ctx, mathserver.NewServer(), mcpserver.Options{
					Transport: tc.transport,
					Listener:  ln,
				})
			}()

			endpoint := "http://" + ln.Addr().String() + tc.path
			cs, err := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v1.0.0"}, nil).
				Connect(context.Background(), tc.client(endpoint), nil)
			require.NoError(t, err)

			res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
				Name:      "add",
				Arguments: map[string]any{"a": 40, "b": 2},
			})
			require.NoError(t, err)
			assert.Equal(t, "42", mcptools.ResultText(res))
			_ = cs.Close()

			cancel()
			select {
			case err = <-done:
				assert.NoError(t, err)
			case <-time.After(10 * time.Second):
				t.Fatal("server did not stop")
			}
		})
	}
}

func Test_Serve_Unsupported(t *testing.T) {
	err := mcpserver.Serve(context.Background(), mathserver.NewServer(), mcpserver.Options{Transport: "grpc"})
	assert.EqualError(t, err, `unsupported transport "grpc"`)

	_, err = mcpserver.Handler(mathserver.NewServer(), mcpconfig.TransportStdio, "")
	assert.EqualError(t, err, `unsupported HTTP transport "stdio"`)
}

func Test_Handler(t *testing.T) {
	h, err := mcpserver.Handler(mathserver.NewServer(), mcpconfig.TransportStreamableHTTP, "/math")
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	defer ts.Close()

	cs, err := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v1.0.0"}, nil).
		Connect(context.Background(), &mcp.StreamableClientTransport{Endpoint: ts.URL + "/math"}, nil)
	require.NoError(t, err)
	defer func() { _ = cs.Close() }()

	tools, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	assert.Len(t, tools.Tools, 2)
}
