// Package llmfactory creates LLM models from a providers configuration file
// or from a `provider:model` spec string, and caches the created models.
package llmfactory
