package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/dashboard"
	"github.com/effective-security/mcpagent/mcp/mathserver"
	"github.com/effective-security/mcpagent/mcp/mcpconfig"
	"github.com/effective-security/mcpagent/mcp/mcpserver"
	"github.com/effective-security/mcpagent/mcp/weather"
	"github.com/effective-security/xlog"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		opts   mcpserver.Options
		nwsURL string
	)

	cmd := &cobra.Command{
		Use:       "serve weather|math",
		Short:     "Run an MCP server",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{weather.ServerName, mathserver.ServerName},
		RunE: func(cmd *cobra.Command, args []string) error {
			var server *mcp.Server
			switch args[0] {
			case weather.ServerName:
				server = weather.NewServer(weather.NewClient(weather.WithBaseURL(nwsURL)))
			case mathserver.ServerName:
				server = mathserver.NewServer()
			default:
				return errors.Newf("unknown server %q, use weather or math", args[0])
			}
			return mcpserver.Serve(cmd.Context(), server, opts)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&opts.Transport, "transport", mcpconfig.TransportStdio, "stdio, sse or streamable_http")
	fl.StringVar(&opts.Addr, "addr", mcpserver.DefaultAddr, "listen address of HTTP transports")
	fl.StringVar(&opts.Path, "path", "", "endpoint path of HTTP transports")
	fl.StringVar(&nwsURL, "nws-url", weather.DefaultBaseURL, "base URL of the NWS API")
	return cmd
}

func newAlertsCmd() *cobra.Command {
	var (
		url   string
		state string
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List the tools of the weather server and get the alerts of a state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			client, err := connect(ctx, urlConfig(DefaultWeatherName, url))
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			list, err := client.ListTools(ctx, DefaultWeatherName)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "Available tools:")
			for _, t := range list {
				fmt.Fprintf(out, "  - %s: %s\n", t.Name, t.Description)
			}

			text, err := client.CallTool(ctx, DefaultWeatherName, dashboard.AlertsTool, map[string]any{"state": state})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "The weather alerts are = %s\n", text)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&url, "url", DefaultServerURL, "URL of the weather MCP server")
	fl.StringVar(&state, "state", "CA", "two-letter US state code")
	return cmd
}

func newDashboardCmd() *cobra.Command {
	var (
		url  string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the weather alerts dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := connect(ctx, urlConfig(DefaultWeatherName, url))
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			h, err := dashboard.New(client, dashboard.WithServer(DefaultWeatherName))
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return errors.Wrap(err, "failed to listen")
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Dashboard: http://%s\n", ln.Addr().String())
			return serveHandler(ctx, ln, h)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&url, "url", DefaultServerURL, "URL of the weather MCP server")
	fl.StringVar(&addr, "addr", dashboard.DefaultAddr, "listen address")
	return cmd
}

// serveHandler serves h on ln until ctx is cancelled.
func serveHandler(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.ContextKV(ctx, xlog.INFO, "status", "serving", "addr", ln.Addr().String())
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.KV(xlog.INFO, "status", "shutting_down")
	return srv.Shutdown(shutdownCtx)
}
