// Package llms defines the provider neutral types used to talk to chat models:
// messages made of typed parts, tool definitions, tool calls and their
// responses, and call options.
//
// Provider implementations live in the subpackages and translate these types
// to the provider wire format.
package llms
