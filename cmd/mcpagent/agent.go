package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/assistants"
	"github.com/effective-security/mcpagent/callbacks"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/prompts"
	"github.com/effective-security/mcpagent/store"
	"github.com/effective-security/mcpagent/tools"
	"github.com/effective-security/mcpagent/tools/tavily"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

// DefaultAgentPrompt is the system prompt of the agent command,
// the tools variable holds the descriptions of the available tools.
const DefaultAgentPrompt = `You are a helpful AI assistant.
Use the available tools to find the information needed to answer the user.
Call tools with the exact names and argument schemas provided.
When you have enough information, answer without calling tools.

Available tools:
{{.tools}}`

type agentFlags struct {
	config       string
	model        string
	llmConfig    string
	systemPrompt string
	maxSteps     int
	memory       bool
	redisURL     string
	tenant       string
	chat         string
	search       bool
	verbose      bool
}

func newAgentCmd() *cobra.Command {
	f := &agentFlags{}
	cmd := &cobra.Command{
		Use:   "agent [query]",
		Short: "Run the tool-calling assistant with the tools of the MCP servers",
		Long: `Runs the assistant with the tools of all servers in the config.
Without a query, reads queries from stdin until EOF or "exit".
With memory enabled, "clear" resets the conversation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, f, strings.Join(args, " "))
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.config, "config", DefaultConfig, "MCP servers config file")
	fl.StringVar(&f.model, "model", DefaultAgentModel, "model as provider:model")
	fl.StringVar(&f.llmConfig, "llm-config", "", "optional LLM providers config file")
	fl.StringVar(&f.systemPrompt, "system-prompt", DefaultAgentPrompt, "system prompt template")
	fl.IntVar(&f.maxSteps, "max-steps", assistants.DefaultMaxSteps, "maximum LLM calls per query")
	fl.BoolVar(&f.memory, "memory", false, "keep the conversation in memory")
	fl.StringVar(&f.redisURL, "redis-url", "", "keep the conversation in Redis")
	fl.StringVar(&f.tenant, "tenant", "", "tenant ID of the conversation")
	fl.StringVar(&f.chat, "chat", "", "chat ID of the conversation")
	fl.BoolVar(&f.search, "search", false, "add the Tavily web search tool")
	fl.BoolVar(&f.verbose, "verbose", false, "print tool outputs and messages")
	return cmd
}

func runAgent(cmd *cobra.Command, f *agentFlags, query string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	model, err := newModel(f.model, f.llmConfig)
	if err != nil {
		return err
	}

	client, list, err := connectFile(ctx, f.config)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if f.search {
		t, err := tavily.New()
		if err != nil {
			return err
		}
		list = append(list, t)
	}

	mode := callbacks.ModeDefault
	if f.verbose {
		mode = callbacks.ModeVerbose
	}
	usage := callbacks.NewUsage(mode)
	opts := []assistants.Option{
		assistants.WithMaxSteps(f.maxSteps),
		assistants.WithPromptInput(map[string]any{"tools": tools.GetDescriptions(list...)}),
		assistants.WithCallback(callbacks.NewFanout(
			callbacks.NewPrinter(cmd.ErrOrStderr(), mode),
			callbacks.NewLogger(logger),
			usage,
		)),
	}

	var mem store.MessageStore
	switch {
	case f.redisURL != "":
		rc, err := store.NewRedisClient(ctx, f.redisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		mem = store.NewRedisStore(rc, "mcpagent")
	case f.memory:
		mem = store.NewMemoryStore()
	}
	if mem != nil {
		opts = append(opts, assistants.WithStore(mem))
	}

	a := assistants.NewAssistant(model, prompts.NewPromptTemplate(f.systemPrompt, []string{"tools"}), opts...).
		WithName("mcp_agent").
		WithDescription("Answers questions with the tools of the MCP servers.").
		WithTools(list...)

	fmt.Fprintf(cmd.ErrOrStderr(), "Using model: %s\n", model.GetName())

	ctx = chatmodel.WithChatContext(ctx, chatmodel.NewChatContext(f.tenant, f.chat))
	if query != "" {
		answer, err := ask(ctx, a, usage, query)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nResult: %s\n", answer)
		return nil
	}
	return chatLoop(ctx, cmd.InOrStdin(), out, a, usage, mem)
}

// ask runs one query and logs the usage of the run
func ask(ctx context.Context, a *assistants.Assistant, usage *callbacks.Usage, query string) (string, error) {
	if err := usage.Begin(ctx); err != nil {
		return "", err
	}
	answer, err := a.Run(ctx, query)
	if stats, _ := usage.End(ctx); stats != nil {
		logger.ContextKV(ctx, xlog.INFO, "stats", stats.String())
	}
	return answer, err
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, a *assistants.Assistant, usage *callbacks.Usage, mem store.MessageStore) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\nYou: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "clear":
			if mem != nil {
				if err := mem.Reset(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "Conversation history cleared.")
			continue
		}

		answer, err := ask(ctx, a, usage, query)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(out, "\nError: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "\nAssistant: %s\n", answer)
	}
}
