package llmfactory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llms/anthropic"
	"github.com/effective-security/mcpagent/pkg/llms/bedrock"
	"github.com/effective-security/mcpagent/pkg/llms/fake"
	"github.com/effective-security/mcpagent/pkg/llms/googleai"
	"github.com/effective-security/mcpagent/pkg/llms/openai"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// Factory creates and caches LLM models.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its provider type, e.g.
	// OPENAI, GROQ, PERPLEXITY, ANTHROPIC, GOOGLEAI, BEDROCK
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by its name,
	// if the model is not found, it will return the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// AssistantModel returns an assistant model by its name.
	AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error)
}

// Load returns the factory configured from the file.
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	cfg *Config

	defaultProvider *ProviderConfig
	assistantModels map[string][]string
	byType          map[string]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// New creates a new LLM factory
func New(cfg *Config) Factory {
	f := &factory{
		cfg:             cfg,
		byType:          make(map[string]llms.Model),
		byName:          make(map[string]llms.Model),
		assistantModels: make(map[string][]string),
	}

	for k, v := range cfg.AssistantModels {
		f.assistantModels[k] = slices.Clone(v)
	}

	if cfg.DefaultProvider != "" {
		for _, provider := range cfg.Providers {
			if provider.Name == cfg.DefaultProvider {
				f.defaultProvider = provider
				break
			}
		}
	}
	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

// CreateLLM creates the model of the provider, the first of preferredModels
// available in the provider is used.
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	provType := normalizeType(cfg.OpenAI.APIType)
	model := cfg.FindModel(preferredModels...)

	switch provType {
	case llms.ProviderOpenAI, llms.ProviderGroq, llms.ProviderPerplexity:
		return newOpenAI(cfg, provType, model)
	case llms.ProviderAnthropic:
		return newAnthropic(cfg, model)
	case llms.ProviderGoogleAI:
		return newGoogleAI(cfg, model)
	case llms.ProviderBedrock:
		return newBedrock(cfg, model)
	case llms.ProviderFake:
		return fake.New([]*llms.ContentResponse{fake.TextResponse(fakeAnswer)},
			fake.WithName(values.StringsCoalesce(model, "fake")),
			fake.WithRepeatLast()), nil
	}
	return nil, errors.Newf("unsupported provider type: %s", cfg.OpenAI.APIType)
}

const fakeAnswer = "This is a scripted answer from the fake model."

func normalizeType(apiType string) llms.ProviderType {
	t := strings.ToUpper(strings.TrimSpace(apiType))
	if t == "OPEN_AI" {
		t = string(llms.ProviderOpenAI)
	}
	return llms.ProviderType(t)
}

func newOpenAI(cfg *ProviderConfig, provider llms.ProviderType, model string) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithProvider(provider),
	}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.OrgID != "" {
		opts = append(opts, openai.WithOrganization(cfg.OpenAI.OrgID))
	}
	return openai.New(opts...)
}

func newAnthropic(cfg *ProviderConfig, model string) (llms.Model, error) {
	var opts []anthropic.Option
	if model != "" {
		opts = append(opts, anthropic.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, anthropic.WithToken(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	return anthropic.New(opts...)
}

func newGoogleAI(cfg *ProviderConfig, model string) (llms.Model, error) {
	var opts []googleai.Option
	if model != "" {
		opts = append(opts, googleai.WithDefaultModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, googleai.WithAPIKey(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, googleai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	return googleai.New(context.Background(), opts...)
}

func newBedrock(cfg *ProviderConfig, model string) (llms.Model, error) {
	var opts []bedrock.Option
	if model != "" {
		opts = append(opts, bedrock.WithModel(model))
	}
	if cfg.AWS.Region != "" {
		opts = append(opts, bedrock.WithRegion(cfg.AWS.Region))
	}
	if cfg.AWS.AccessKeyID != "" {
		opts = append(opts, bedrock.WithStaticCredentials(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, cfg.AWS.SessionToken))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, bedrock.WithBaseEndpoint(cfg.OpenAI.BaseURL))
	}
	return bedrock.New(context.Background(), opts...)
}

// DefaultModel returns the default model of the default provider.
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}

	return NewLLM(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	pt := normalizeType(providerType)
	if client, ok := f.byType[string(pt)]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if normalizeType(cfg.OpenAI.APIType) == pt {
			model, err := NewLLM(cfg)
			if err != nil {
				return nil, err
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.OpenAI.APIType,
				"name", cfg.Name)

			f.byType[string(pt)] = model
			return model, nil
		}
	}
	return nil, errors.Newf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	f.lock.Lock()
	for _, modelName := range modelNames {
		if client, ok := f.byName[modelName]; ok {
			f.lock.Unlock()
			return client, nil
		}

		for _, cfg := range f.cfg.Providers {
			if !slices.Contains(cfg.AvailableModels, modelName) {
				continue
			}
			model, err := NewLLM(cfg, modelName)
			if err != nil {
				logger.KV(xlog.ERROR,
					"reason", "NewLLM",
					"type", cfg.OpenAI.APIType,
					"model", modelName,
					"err", err.Error(),
				)
				continue
			}

			logger.KV(xlog.DEBUG,
				"status", "created_llm",
				"type", cfg.OpenAI.APIType,
				"model", modelName,
				"name", cfg.Name)

			f.byName[modelName] = model
			f.lock.Unlock()
			return model, nil
		}
	}
	f.lock.Unlock()
	return f.DefaultModel()
}

// AssistantModel returns an assistant model by its name.
func (f *factory) AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error) {
	if modelNames, ok := f.assistantModels[assistantName]; ok {
		return f.ModelByName(modelNames...)
	}
	if modelNames, ok := f.assistantModels["default"]; ok {
		return f.ModelByName(modelNames...)
	}
	return f.ModelByName(preferredModels...)
}
