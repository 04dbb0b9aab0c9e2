// Package mcpclient manages sessions to several MCP servers and exposes
// their tools to the assistants.
package mcpclient

import (
	"context"
	"net/http"
	"os/exec"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/mcpconfig"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/mcpagent/tools/mcptools"
	"github.com/effective-security/xlog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/mcp", "mcpclient")

// Implementation is reported to the servers.
var Implementation = &mcp.Implementation{Name: "mcpagent", Version: "1.0.0"}

// TransportFactory creates the transport for a server.
type TransportFactory func(ctx context.Context, name string, cfg *mcpconfig.ServerConfig) (mcp.Transport, error)

// Option configures the client.
type Option func(*Client)

// WithTransportFactory replaces the transport construction,
// tests use it to connect in-memory transports.
func WithTransportFactory(f TransportFactory) Option {
	return func(c *Client) {
		c.newTransport = f
	}
}

// WithHTTPClient sets the base HTTP client for SSE and streamable transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Client is connected to all the servers of the config.
type Client struct {
	cfg          *mcpconfig.Config
	client       *mcp.Client
	newTransport TransportFactory
	httpClient   *http.Client

	lock     sync.RWMutex
	sessions map[string]*mcp.ClientSession
	cancels  map[string]context.CancelFunc
}

// New returns the client for the config, call Connect to start sessions.
func New(cfg *mcpconfig.Config, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		client:     mcp.NewClient(Implementation, nil),
		httpClient: http.DefaultClient,
		sessions:   make(map[string]*mcp.ClientSession),
		cancels:    make(map[string]context.CancelFunc),
	}
	c.newTransport = c.defaultTransport
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts sessions to all enabled servers concurrently.
// Servers that connected stay connected when others fail.
// The ctx bounds the handshake only, the sessions and the stdio
// processes live until Close.
func (c *Client) Connect(ctx context.Context) error {
	names := c.cfg.Names()

	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.connect(ctx, name, c.cfg.MCPServers[name])
		}()
	}
	wg.Wait()

	var err error
	for _, e := range errs {
		if e != nil {
			err = errors.CombineErrors(err, e)
		}
	}
	return err
}

func (c *Client) connect(ctx context.Context, name string, cfg *mcpconfig.ServerConfig) error {
	transportType := cfg.TransportType()

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)

	session, err := c.start(sctx, name, cfg)
	if !stop() || ctx.Err() != nil {
		// ctx was done during the handshake
		if session != nil {
			_ = session.Close()
		}
		err = errors.CombineErrors(err, errors.Wrapf(context.Cause(ctx), "failed to connect to %s", name))
	}
	if err != nil {
		cancel()
		metricskey.StatsMCPSessionsFailed.IncrCounter(1, name, transportType)
		logger.ContextKV(ctx, xlog.ERROR,
			"server", name,
			"transport", transportType,
			"err", err.Error(),
		)
		return err
	}
	metricskey.StatsMCPSessionsConnected.IncrCounter(1, name, transportType)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "connected",
		"server", name,
		"transport", transportType,
	)

	c.lock.Lock()
	if old, ok := c.sessions[name]; ok {
		_ = old.Close()
		c.cancels[name]()
	}
	c.sessions[name] = session
	c.cancels[name] = cancel
	c.lock.Unlock()
	return nil
}

// start creates the transport and runs the initialize handshake.
func (c *Client) start(ctx context.Context, name string, cfg *mcpconfig.ServerConfig) (*mcp.ClientSession, error) {
	transport, err := c.newTransport(ctx, name, cfg)
	if err != nil {
		return nil, errors.WithMessagef(err, "server %s", name)
	}
	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", name)
	}
	return session, nil
}

func (c *Client) defaultTransport(ctx context.Context, _ string, cfg *mcpconfig.ServerConfig) (mcp.Transport, error) {
	switch cfg.TransportType() {
	case mcpconfig.TransportStdio:
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		cmd.Env = cfg.Environ()
		cmd.Dir = cfg.Cwd
		return &mcp.CommandTransport{Command: cmd}, nil
	case mcpconfig.TransportSSE:
		return &mcp.SSEClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: c.headersClient(cfg.Headers),
		}, nil
	case mcpconfig.TransportStreamableHTTP, mcpconfig.TransportHTTP:
		return &mcp.StreamableClientTransport{
			Endpoint:   cfg.URL,
			HTTPClient: c.headersClient(cfg.Headers),
		}, nil
	}
	return nil, errors.Newf("unsupported transport %q", cfg.Transport)
}

func (c *Client) headersClient(headers map[string]string) *http.Client {
	if len(headers) == 0 {
		return c.httpClient
	}
	hc := *c.httpClient
	hc.Transport = &headerTransport{
		headers: headers,
		base:    c.httpClient.Transport,
	}
	return &hc
}

type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	for k, v := range t.headers {
		r.Header.Set(k, v)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// Session returns the session of the server.
func (c *Client) Session(name string) (*mcp.ClientSession, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	s, ok := c.sessions[name]
	return s, ok
}

// Sessions returns the sorted names of the connected servers.
func (c *Client) Sessions() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	names := make([]string, 0, len(c.sessions))
	for name := range c.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) session(name string) (*mcp.ClientSession, error) {
	s, ok := c.Session(name)
	if !ok {
		return nil, errors.Newf("server %q is not connected", name)
	}
	return s, nil
}

// Tools returns the tools of all servers, sorted by server then tool name.
// When several servers serve a tool with the same name, the tools are
// exposed as `<server>_<tool>`.
func (c *Client) Tools(ctx context.Context) ([]tools.ITool, error) {
	type entry struct {
		server string
		tool   *mcp.Tool
		sess   *mcp.ClientSession
	}
	var all []entry
	counts := map[string]int{}
	for _, server := range c.Sessions() {
		sess, err := c.session(server)
		if err != nil {
			return nil, err
		}
		list, err := mcptools.FromSession(ctx, server, sess)
		if err != nil {
			return nil, err
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
		for _, t := range list {
			all = append(all, entry{server: server, tool: t.MCPTool(), sess: sess})
			counts[t.Name()]++
		}
	}

	res := make([]tools.ITool, 0, len(all))
	for _, e := range all {
		name := e.tool.Name
		if counts[name] > 1 {
			name = e.server + "_" + name
		}
		t, err := mcptools.New(e.server, name, e.sess, e.tool)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

// ListTools returns the tools of the server.
func (c *Client) ListTools(ctx context.Context, server string) ([]*mcp.Tool, error) {
	sess, err := c.session(server)
	if err != nil {
		return nil, err
	}
	list, err := mcptools.FromSession(ctx, server, sess)
	if err != nil {
		return nil, err
	}
	res := make([]*mcp.Tool, 0, len(list))
	for _, t := range list {
		res = append(res, t.MCPTool())
	}
	return res, nil
}

// CallTool calls the tool on the server and returns its text content.
func (c *Client) CallTool(ctx context.Context, server, name string, args map[string]any) (string, error) {
	sess, err := c.session(server)
	if err != nil {
		return "", err
	}
	res, err := sess.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		metricskey.StatsMCPToolCallsFailed.IncrCounter(1, server, name)
		return "", errors.Wrapf(err, "failed to call tool %s", name)
	}
	text := mcptools.ResultText(res)
	if res.IsError {
		metricskey.StatsMCPToolCallsFailed.IncrCounter(1, server, name)
		return "", errors.Newf("tool %s: %s", name, text)
	}
	return text, nil
}

// Close closes all sessions.
func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	var err error
	for name, s := range c.sessions {
		if e := s.Close(); e != nil {
			err = errors.CombineErrors(err, errors.Wrapf(e, "failed to close %s", name))
		}
		delete(c.sessions, name)
		if cancel, ok := c.cancels[name]; ok {
			cancel()
			delete(c.cancels, name)
		}
	}
	return err
}
