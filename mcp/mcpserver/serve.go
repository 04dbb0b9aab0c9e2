// Package mcpserver runs an MCP server on stdio, SSE or streamable HTTP.
package mcpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/mcp/mcpconfig"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/mcp", "mcpserver")

// Defaults for the HTTP transports
const (
	DefaultAddr           = ":8000"
	DefaultSSEPath        = "/sse"
	DefaultStreamablePath = "/mcp"
	shutdownTimeout       = 5 * time.Second
)

// Options for Serve
type Options struct {
	// Transport is one of stdio, sse, streamable_http or http
	Transport string
	// Addr to listen on for HTTP transports
	Addr string
	// Path of the endpoint for HTTP transports
	Path string
	// Listener overrides Addr when set
	Listener net.Listener
}

// Serve runs the server until ctx is cancelled or the transport fails.
func Serve(ctx context.Context, server *mcp.Server, opts Options) error {
	transport := values.StringsCoalesce(opts.Transport, mcpconfig.TransportStdio)
	switch transport {
	case mcpconfig.TransportStdio:
		logger.ContextKV(ctx, xlog.INFO, "status", "serving", "transport", transport)
		err := server.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "stdio server failed")
		}
		return nil
	case mcpconfig.TransportSSE, mcpconfig.TransportStreamableHTTP, mcpconfig.TransportHTTP:
		h, path, err := handler(server, transport, opts.Path)
		if err != nil {
			return err
		}
		return serveHTTP(ctx, transport, path, h, opts)
	}
	return errors.Newf("unsupported transport %q", opts.Transport)
}

// Handler returns the HTTP handler for the transport, mounted at path or
// at the default path of the transport.
func Handler(server *mcp.Server, transport, path string) (http.Handler, error) {
	h, path, err := handler(server, transport, path)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(path, h)
	return mux, nil
}

func handler(server *mcp.Server, transport, path string) (http.Handler, string, error) {
	getServer := func(*http.Request) *mcp.Server { return server }
	switch transport {
	case mcpconfig.TransportSSE:
		return mcp.NewSSEHandler(getServer, nil), values.StringsCoalesce(path, DefaultSSEPath), nil
	case mcpconfig.TransportStreamableHTTP, mcpconfig.TransportHTTP:
		return mcp.NewStreamableHTTPHandler(getServer, nil), values.StringsCoalesce(path, DefaultStreamablePath), nil
	}
	return nil, "", errors.Newf("unsupported HTTP transport %q", transport)
}

func serveHTTP(ctx context.Context, transport, path string, h http.Handler, opts Options) error {
	mux := http.NewServeMux()
	mux.Handle(path, h)

	ln := opts.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", values.StringsCoalesce(opts.Addr, DefaultAddr))
		if err != nil {
			return errors.Wrap(err, "failed to listen")
		}
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.ContextKV(ctx, xlog.INFO,
			"status", "serving",
			"transport", transport,
			"addr", ln.Addr().String(),
			"path", path,
		)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.KV(xlog.INFO, "status", "shutting_down", "transport", transport)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// SSE streams stay open until closed
		_ = srv.Close()
	}
	return nil
}
