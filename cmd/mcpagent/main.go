// Command mcpagent runs tool-calling agents over MCP servers, serves the
// weather and math MCP servers, and hosts the weather alerts dashboard.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/cmd", "mcpagent")

var logLevels = map[string]xlog.LogLevel{
	"DEBUG":   xlog.DEBUG,
	"INFO":    xlog.INFO,
	"WARN":    xlog.WARNING,
	"WARNING": xlog.WARNING,
	"ERROR":   xlog.ERROR,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		envFile  string
	)

	root := &cobra.Command{
		Use:           "mcpagent",
		Short:         "Tool-calling agents over MCP servers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, ok := logLevels[strings.ToUpper(logLevel)]
			if !ok {
				return errors.Newf("invalid log level %q", logLevel)
			}
			xlog.SetFormatter(xlog.NewStringFormatter(cmd.ErrOrStderr()))
			xlog.SetGlobalLogLevel(level)

			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return errors.Wrapf(err, "failed to load %s", envFile)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "log level: DEBUG, INFO, WARNING or ERROR")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file with environment variables")

	root.AddCommand(
		newAgentCmd(),
		newGraphCmd(),
		newToolsCmd(),
		newAlertsCmd(),
		newServeCmd(),
		newDashboardCmd(),
	)
	return root
}
