package mcpconfig_test

import (
	"testing"

	"github.com/effective-security/mcpagent/mcp/mcpconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	t.Setenv("TEST_WEATHER_TOKEN", "secret")

	cfg, err := mcpconfig.Load("testdata/weather.json")
	require.NoError(t, err)
	require.Len(t, cfg.MCPServers, 3)
	assert.Equal(t, []string{"alerts", "weather"}, cfg.Names())

	weather := cfg.MCPServers["weather"]
	assert.Equal(t, mcpconfig.TransportStdio, weather.TransportType())
	assert.Equal(t, "secret", weather.Env["WEATHER_TOKEN"])
	assert.Contains(t, weather.Environ(), "WEATHER_TOKEN=secret")

	assert.Equal(t, mcpconfig.TransportSSE, cfg.MCPServers["alerts"].TransportType())
	assert.Equal(t, mcpconfig.TransportStreamableHTTP, cfg.MCPServers["math"].TransportType())
	assert.Equal(t, "Bearer secret", cfg.MCPServers["math"].Headers["Authorization"])

	cfg, err = mcpconfig.Load("testdata/weather.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"alerts", "weather"}, cfg.Names())
	assert.Equal(t, []string{"serve", "weather"}, cfg.MCPServers["weather"].Args)

	cfg, err = mcpconfig.Load("testdata/weather.toml")
	require.NoError(t, err)
	assert.Equal(t, []string{"math", "weather"}, cfg.Names())
	assert.Equal(t, "mcpagent", cfg.MCPServers["weather"].Command)

	_, err = mcpconfig.Load("testdata/missing.json")
	require.Error(t, err)

	_, err = mcpconfig.Load("config.go")
	assert.EqualError(t, err, "unsupported config format: config.go")
}

func Test_Parse_Invalid(t *testing.T) {
	tcases := []struct {
		name string
		data string
		err  string
	}{
		{name: "empty", data: `{}`, err: "no mcpServers configured"},
		{name: "no command", data: `{"mcpServers":{"x":{"transport":"stdio"}}}`, err: `server "x": command is required for stdio transport`},
		{name: "relative url", data: `{"mcpServers":{"x":{"url":"/sse"}}}`, err: `server "x": invalid URL "/sse"`},
		{name: "unknown transport", data: `{"mcpServers":{"x":{"url":"http://h/mcp","transport":"grpc"}}}`, err: "oneof"},
		{name: "unknown field", data: `{"mcpServers":{"x":{"cmd":"a"}}}`, err: "unknown field"},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mcpconfig.Parse([]byte(tc.data), mcpconfig.FormatJSON)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}

	_, err := mcpconfig.Parse([]byte(`{}`), "ini")
	assert.EqualError(t, err, "unsupported config format: ini")
}

func Test_TransportType(t *testing.T) {
	tcases := []struct {
		cfg mcpconfig.ServerConfig
		exp string
	}{
		{mcpconfig.ServerConfig{Command: "npx"}, mcpconfig.TransportStdio},
		{mcpconfig.ServerConfig{URL: "http://localhost:8000/sse"}, mcpconfig.TransportSSE},
		{mcpconfig.ServerConfig{URL: "http://localhost:8000/sse/"}, mcpconfig.TransportSSE},
		{mcpconfig.ServerConfig{URL: "http://localhost:8000/mcp"}, mcpconfig.TransportStreamableHTTP},
		{mcpconfig.ServerConfig{URL: "http://localhost:8000/mcp", Transport: "HTTP"}, mcpconfig.TransportHTTP},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.exp, tc.cfg.TransportType(), tc.cfg.URL)
	}
}
