package mcpclient_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/effective-security/mcpagent/mcp/mathserver"
	"github.com/effective-security/mcpagent/mcp/mcpclient"
	"github.com/effective-security/mcpagent/mcp/mcpconfig"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stdioServerEnv makes the test binary run the math server on stdio.
const stdioServerEnv = "MCPCLIENT_STDIO_SERVER"

func TestMain(m *testing.M) {
	if os.Getenv(stdioServerEnv) == mathserver.ServerName {
		if err := mathserver.NewServer().Run(context.Background(), &mcp.StdioTransport{}); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func Test_Client_Stdio(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	cfg := &mcpconfig.Config{
		MCPServers: map[string]*mcpconfig.ServerConfig{
			"math": {
				Command: exe,
				Args:    []string{"-test.run=^$"},
				Env:     map[string]string{stdioServerEnv: mathserver.ServerName},
			},
		},
	}
	require.NoError(t, cfg.Validate())

	c := mcpclient.New(cfg)

	// the sessions outlive the connect context
	cctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	require.NoError(t, c.Connect(cctx))
	cancel()
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	list, err := c.Tools(ctx)
	require.NoError(t, err)
	var names []string
	for _, tool := range list {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"add", "multiply"}, names)

	out, err := c.CallTool(ctx, "math", "add", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, "5", out)

	require.NoError(t, c.Close())
	assert.Empty(t, c.Sessions())
}

func Test_Client_ConnectCancelled(t *testing.T) {
	cfg := &mcpconfig.Config{
		MCPServers: map[string]*mcpconfig.ServerConfig{
			"alpha": {Command: "alpha"},
		},
	}
	servers := map[string]*mcp.Server{
		"alpha": newServer("alpha", "echo"),
	}
	c := mcpclient.New(cfg, mcpclient.WithTransportFactory(inMemory(t, servers)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to alpha")
	assert.Empty(t, c.Sessions())
}
