package main

import (
	"fmt"
	"strings"

	"github.com/effective-security/mcpagent/graph"
	"github.com/effective-security/mcpagent/graph/agent"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	var (
		config         string
		model          string
		llmConfig      string
		systemPrompt   string
		recursionLimit int
	)

	cmd := &cobra.Command{
		Use:   "graph query",
		Short: "Run the ReAct state graph with the tools of the MCP servers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			llm, err := newModel(model, llmConfig)
			if err != nil {
				return err
			}
			client, list, err := connectFile(ctx, config)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			for _, t := range list {
				fmt.Fprintf(out, "%s: %s\n", t.Name(), t.Description())
			}
			fmt.Fprintf(out, "\n Loaded %d tools total\n\n", len(list))

			a, err := agent.New(llm, list,
				agent.WithSystemPrompt(systemPrompt),
				agent.WithRecursionLimit(recursionLimit),
				agent.WithStepCallback(func(step int, node string) {
					logger.ContextKV(ctx, xlog.DEBUG, "step", step, "node", node)
				}),
			)
			if err != nil {
				return err
			}

			state, err := a.Run(ctx, strings.Join(args, " "))
			agent.PrettyPrint(out, state.Messages)
			if err != nil {
				return err
			}
			logger.ContextKV(ctx, xlog.INFO, "llm_calls", state.LLMCalls, "messages", len(state.Messages))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&config, "config", DefaultConfig, "MCP servers config file")
	fl.StringVar(&model, "model", DefaultGraphModel, "model as provider:model")
	fl.StringVar(&llmConfig, "llm-config", "", "optional LLM providers config file")
	fl.StringVar(&systemPrompt, "system-prompt", agent.DefaultSystemPrompt, "system prompt")
	fl.IntVar(&recursionLimit, "recursion-limit", graph.DefaultRecursionLimit, "maximum graph steps")
	return cmd
}

func newToolsCmd() *cobra.Command {
	var config string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools of the MCP servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, list, err := connectFile(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			for _, t := range list {
				fmt.Fprintf(out, "%s: %s\n", t.Name(), strings.TrimSpace(t.Description()))
			}
			fmt.Fprintf(out, "\nLoaded %d tools total\n", len(list))
			return nil
		},
	}
	cmd.Flags().StringVar(&config, "config", DefaultConfig, "MCP servers config file")
	return cmd
}
