package main

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/mcpclient"
	"github.com/effective-security/mcpagent/mcp/mcpconfig"
	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/xlog"
)

// Defaults of the commands
const (
	DefaultConfig      = "browser_mcp.json"
	DefaultAgentModel  = "groq:llama-3.3-70b-versatile"
	DefaultGraphModel  = "google_genai:gemini-2.0-flash"
	DefaultServerURL   = "http://localhost:8000/sse"
	DefaultWeatherName = "weather"
	connectTimeout     = time.Minute
)

// urlConfig is the config of a single server reached by URL.
func urlConfig(name, url string) *mcpconfig.Config {
	return &mcpconfig.Config{
		MCPServers: map[string]*mcpconfig.ServerConfig{
			name: {URL: url},
		},
	}
}

// connect starts the sessions of the config.
func connect(ctx context.Context, cfg *mcpconfig.Config) (*mcpclient.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client := mcpclient.New(cfg)
	if err := client.Connect(cctx); err != nil {
		if len(client.Sessions()) == 0 {
			return nil, err
		}
		logger.ContextKV(ctx, xlog.WARNING,
			"reason", "connect",
			"connected", client.Sessions(),
			"err", err.Error(),
		)
	}
	return client, nil
}

// connectFile loads the config file and returns the client and the tools
// of all connected servers.
func connectFile(ctx context.Context, file string) (*mcpclient.Client, []tools.ITool, error) {
	cfg, err := mcpconfig.Load(file)
	if err != nil {
		return nil, nil, err
	}
	client, err := connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	list, err := client.Tools(ctx)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return client, list, nil
}

// newModel creates the model from `provider:model`, or from the models of
// the LLM config file when one is given.
func newModel(spec, llmConfig string) (llms.Model, error) {
	if llmConfig == "" {
		return llmfactory.FromSpec(spec)
	}

	f, err := llmfactory.Load(llmConfig)
	if err != nil {
		return nil, err
	}
	ms, err := llmfactory.ParseModelSpec(spec)
	if err != nil {
		return nil, err
	}
	if ms.Model == "" {
		return f.ModelByType(string(ms.Provider))
	}
	model, err := f.ModelByName(ms.Model)
	if err != nil {
		return nil, errors.WithMessagef(err, "model %s", spec)
	}
	return model, nil
}
