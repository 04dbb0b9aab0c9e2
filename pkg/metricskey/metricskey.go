// Package metricskey describes the metrics emitted by the agent, its tools,
// the MCP sessions and the graph runtime.
package metricskey

import "github.com/effective-security/metrics"

// LLM stats, tagged by agent and model
var (
	// StatsLLMMessagesSent is base for counter metric for total messages sent to LLM
	StatsLLMMessagesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_messages_sent",
		Help:         "stats_llm_messages_sent provides total messages sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"agent", "model"},
	}

	StatsLLMTotalTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_total_tokens",
		Help:         "stats_llm_total_tokens provides total tokens sent and received from LLM",
		RequiredTags: []string{"agent", "model"},
	}
)

// Assistant and tool stats
var (
	StatsAssistantCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_calls_succeeded",
		Help:         "stats_assistant_calls_succeeded provides total assistant calls succeeded",
		RequiredTags: []string{"agent"},
	}

	StatsAssistantCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_calls_failed",
		Help:         "stats_assistant_calls_failed provides total assistant calls failed",
		RequiredTags: []string{"agent"},
	}

	StatsAssistantCallsRetried = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_calls_retried",
		Help:         "stats_assistant_calls_retried provides total LLM calls retried on empty response",
		RequiredTags: []string{"agent"},
	}

	StatsAssistantSteps = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_steps",
		Help:         "stats_assistant_steps provides total steps of the tool calling loop",
		RequiredTags: []string{"agent"},
	}

	StatsAssistantStepsExceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_assistant_steps_exceeded",
		Help:         "stats_assistant_steps_exceeded provides total runs stopped by the steps limit",
		RequiredTags: []string{"agent"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}
)

// MCP and graph stats
var (
	StatsMCPSessionsConnected = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_mcp_sessions_connected",
		Help:         "stats_mcp_sessions_connected provides total MCP sessions connected",
		RequiredTags: []string{"server", "transport"},
	}

	StatsMCPSessionsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_mcp_sessions_failed",
		Help:         "stats_mcp_sessions_failed provides total MCP sessions failed to connect",
		RequiredTags: []string{"server", "transport"},
	}

	StatsMCPToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_mcp_tool_calls_failed",
		Help:         "stats_mcp_tool_calls_failed provides total MCP tool calls returned an error",
		RequiredTags: []string{"server", "tool"},
	}

	StatsGraphSteps = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_graph_steps",
		Help:         "stats_graph_steps provides total node executions of a graph",
		RequiredTags: []string{"graph", "node"},
	}

	StatsWeatherRequestsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_weather_requests_failed",
		Help:         "stats_weather_requests_failed provides total failed NWS API requests",
		RequiredTags: []string{"endpoint"},
	}
)

// Perf
var (
	PerfAssistantCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_assistant_call",
		Help:         "perf_assistant_call provides duration of assistant call",
		RequiredTags: []string{"agent"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfMCPToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_mcp_tool_call",
		Help:         "perf_mcp_tool_call provides duration of MCP tool call",
		RequiredTags: []string{"server", "tool"},
	}

	PerfGraphRun = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_graph_run",
		Help:         "perf_graph_run provides duration of graph invocation",
		RequiredTags: []string{"graph"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfAssistantCall,
	&PerfGraphRun,
	&PerfMCPToolCall,
	&PerfToolCall,
	&StatsAssistantCallsFailed,
	&StatsAssistantCallsRetried,
	&StatsAssistantCallsSucceeded,
	&StatsAssistantSteps,
	&StatsAssistantStepsExceeded,
	&StatsGraphSteps,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMInputTokens,
	&StatsLLMMessagesSent,
	&StatsLLMOutputTokens,
	&StatsLLMTotalTokens,
	&StatsMCPSessionsConnected,
	&StatsMCPSessionsFailed,
	&StatsMCPToolCallsFailed,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
	&StatsWeatherRequestsFailed,
}
