package mathserver_test

import (
	"context"
	"testing"

	"github.com/effective-security/mcpagent/mcp/mathserver"
	"github.com/effective-security/mcpagent/tools/mcptools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Server(t *testing.T) {
	ctx := context.Background()
	ct, st := mcp.NewInMemoryTransports()
	ss, err := mathserver.NewServer().Connect(ctx, st, nil)
	require.NoError(t, err)
	defer func() { _ = ss.Close() }()

	cs, err := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v1.0.0"}, nil).Connect(ctx, ct, nil)
	require.NoError(t, err)
	defer func() { _ = cs.Close() }()

	list, err := mcptools.FromSession(ctx, mathserver.ServerName, cs)
	require.NoError(t, err)
	require.Len(t, list, 2)

	tcases := []struct {
		tool string
		args string
		exp  string
	}{
		{"add", `{"a":3,"b":5}`, "8"},
		{"add", `{"a":-3,"b":1}`, "-2"},
		{"multiply", `{"a":12,"b":8}`, "96"},
	}
	for _, tc := range tcases {
		var tool *mcptools.Tool
		for _, l := range list {
			if l.Name() == tc.tool {
				tool = l
			}
		}
		require.NotNil(t, tool, tc.tool)
		out, err := tool.Call(ctx, tc.args)
		require.NoError(t, err)
		assert.Equal(t, tc.exp, out)
	}

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{Name: "multiply", Arguments: map[string]any{"a": 2, "b": 21}})
	require.NoError(t, err)
	assert.Equal(t, "42", mcptools.ResultText(res))
	assert.NotNil(t, res.StructuredContent)
}
