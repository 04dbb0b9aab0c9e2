package llmfactory

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
)

// ModelSpec is a parsed `provider:model` string.
type ModelSpec struct {
	Provider llms.ProviderType
	Model    string
}

func (s ModelSpec) String() string {
	return strings.ToLower(string(s.Provider)) + ":" + s.Model
}

var providerAliases = map[string]llms.ProviderType{
	"openai":           llms.ProviderOpenAI,
	"open_ai":          llms.ProviderOpenAI,
	"groq":             llms.ProviderGroq,
	"perplexity":       llms.ProviderPerplexity,
	"anthropic":        llms.ProviderAnthropic,
	"google":           llms.ProviderGoogleAI,
	"googleai":         llms.ProviderGoogleAI,
	"google_genai":     llms.ProviderGoogleAI,
	"google_vertexai":  llms.ProviderGoogleAI,
	"gemini":           llms.ProviderGoogleAI,
	"bedrock":          llms.ProviderBedrock,
	"bedrock_converse": llms.ProviderBedrock,
	"fake":             llms.ProviderFake,
}

// ParseModelSpec parses `provider:model`, for example
// `groq:llama-3.3-70b-versatile` or `google_genai:gemini-2.0-flash`.
// The model may be empty to use the provider's default.
func ParseModelSpec(spec string) (ModelSpec, error) {
	spec = strings.TrimSpace(spec)
	provider, model, found := strings.Cut(spec, ":")
	if !found {
		return ModelSpec{}, errors.Newf("invalid model spec %q, expected provider:model", spec)
	}
	pt, ok := providerAliases[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return ModelSpec{}, errors.Newf("unsupported provider %q", provider)
	}
	return ModelSpec{
		Provider: pt,
		Model:    strings.TrimSpace(model),
	}, nil
}

// FromSpec creates the model from a `provider:model` string,
// API keys are read from the provider's environment variables.
func FromSpec(spec string) (llms.Model, error) {
	ms, err := ParseModelSpec(spec)
	if err != nil {
		return nil, err
	}
	return NewLLM(&ProviderConfig{
		Name:         string(ms.Provider),
		DefaultModel: ms.Model,
		OpenAI:       OpenAIConfig{APIType: string(ms.Provider)},
	})
}
