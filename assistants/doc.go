// Package assistants runs the bounded tool-calling loop of an LLM agent.
//
// An Assistant sends the conversation to a model, executes the tool calls
// the model requests, feeds the observations back and repeats until the
// model answers without tool calls or a limit is reached.
package assistants
