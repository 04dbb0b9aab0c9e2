// Package mcpconfig loads the `mcpServers` configuration of MCP clients.
//
// The format follows the one used by desktop MCP hosts:
//
//	{
//	  "mcpServers": {
//	    "weather": {"command": "mcpagent", "args": ["serve", "weather"]},
//	    "remote": {"url": "http://localhost:8000/sse"}
//	  }
//	}
package mcpconfig

import (
	"bytes"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"sigs.k8s.io/yaml"
)

// Transport types
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamable_http"
	TransportHTTP           = "http"
)

// Format of the config file
type Format string

// Supported formats
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config is the `mcpServers` configuration.
type Config struct {
	MCPServers map[string]*ServerConfig `json:"mcpServers" yaml:"mcpServers" toml:"mcpServers" validate:"dive"`
}

// ServerConfig describes how to connect to one server.
type ServerConfig struct {
	// Command and Args start a stdio server
	Command string            `json:"command,omitempty" yaml:"command,omitempty" toml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty" toml:"args"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty" toml:"env"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd,omitempty" toml:"cwd"`

	// URL of SSE or streamable HTTP server
	URL string `json:"url,omitempty" yaml:"url,omitempty" toml:"url"`
	// Transport is inferred when empty
	Transport string            `json:"transport,omitempty" yaml:"transport,omitempty" toml:"transport" validate:"omitempty,oneof=stdio sse streamable_http http"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" toml:"headers"`
	Disabled  bool              `json:"disabled,omitempty" yaml:"disabled,omitempty" toml:"disabled"`
}

// TransportType returns the configured transport, or the one inferred from
// the command and URL.
func (c *ServerConfig) TransportType() string {
	if c.Transport != "" {
		return strings.ToLower(c.Transport)
	}
	if c.Command != "" {
		return TransportStdio
	}
	if u, err := url.Parse(c.URL); err == nil && strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), "/sse") {
		return TransportSSE
	}
	return TransportStreamableHTTP
}

// Names returns the sorted names of the enabled servers.
func (c *Config) Names() []string {
	var names []string
	for name, s := range c.MCPServers {
		if s != nil && !s.Disabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if len(c.MCPServers) == 0 {
		return errors.New("no mcpServers configured")
	}
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid mcpServers config")
	}
	for _, name := range c.Names() {
		if err := c.MCPServers[name].validate(); err != nil {
			return errors.WithMessagef(err, "server %q", name)
		}
	}
	return nil
}

func (c *ServerConfig) validate() error {
	switch c.TransportType() {
	case TransportStdio:
		if c.Command == "" {
			return errors.New("command is required for stdio transport")
		}
	case TransportSSE, TransportStreamableHTTP, TransportHTTP:
		u, err := url.Parse(c.URL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return errors.Newf("invalid URL %q", c.URL)
		}
	default:
		return errors.Newf("unsupported transport %q", c.Transport)
	}
	return nil
}

// Load reads the config from file, the format is selected by the extension.
func Load(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", file)
	}
	format, err := FormatFromExt(file)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, format)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to load %s", file)
	}
	return cfg, nil
}

// FormatFromExt returns the format for the file extension.
func FormatFromExt(file string) (Format, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", errors.Newf("unsupported config format: %s", file)
}

// Parse decodes and validates the config, ${ENV} references in string
// values are expanded.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := new(Config)
	var err error
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	case FormatYAML:
		err = yaml.UnmarshalStrict(data, cfg)
	case FormatTOML:
		_, err = toml.Decode(string(data), cfg)
	default:
		return nil, errors.Newf("unsupported config format: %s", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", format)
	}

	cfg.expand()
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expand() {
	for _, s := range c.MCPServers {
		if s == nil {
			continue
		}
		s.Command = os.ExpandEnv(s.Command)
		s.Cwd = os.ExpandEnv(s.Cwd)
		s.URL = os.ExpandEnv(s.URL)
		for i, a := range s.Args {
			s.Args[i] = os.ExpandEnv(a)
		}
		for k, v := range s.Env {
			s.Env[k] = os.ExpandEnv(v)
		}
		for k, v := range s.Headers {
			s.Headers[k] = os.ExpandEnv(v)
		}
	}
}

// Environ returns the process environment merged with the server Env,
// the server values win.
func (c *ServerConfig) Environ() []string {
	env := os.Environ()
	keys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		prefix := k + "="
		env = slices.DeleteFunc(env, func(kv string) bool { return strings.HasPrefix(kv, prefix) })
		env = append(env, prefix+c.Env[k])
	}
	return env
}
