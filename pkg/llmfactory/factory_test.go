package llmfactory_test

import (
	"context"
	"testing"

	"github.com/effective-security/mcpagent/pkg/llmfactory"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "fakekey")
	t.Setenv("GROQ_API_KEY", "fakekey")
	t.Setenv("PERPLEXITY_API_KEY", "fakekey")
	t.Setenv("ANTHROPIC_API_KEY", "fakekey")
	t.Setenv("GOOGLE_API_KEY", "fakekey")
}

func useFakeLLM(t *testing.T) {
	llmfactory.NewLLM = func(cfg *llmfactory.ProviderConfig, preferredModels ...string) (llms.Model, error) {
		return &fakeLLM{provider: cfg.Name, model: cfg.FindModel(preferredModels...)}, nil
	}
	t.Cleanup(func() {
		llmfactory.NewLLM = llmfactory.CreateLLM
	})
}

func Test_Factory(t *testing.T) {
	setKeys(t)
	useFakeLLM(t)

	cfg, err := llmfactory.LoadConfig("testdata/llm.yaml")
	require.NoError(t, err)
	require.Len(t, cfg.Providers, 4)
	assert.Equal(t, "fakekey", cfg.Providers[0].Token)
	assert.Equal(t, "us-west-2", cfg.Providers[3].AWS.Region)

	f := llmfactory.New(cfg)

	check := func(model llms.Model, err error, provider, name string) {
		t.Helper()
		require.NoError(t, err)
		fm := model.(*fakeLLM)
		assert.Equal(t, provider, fm.provider)
		assert.Equal(t, name, fm.model)
	}

	model, err := f.DefaultModel()
	check(model, err, "groq", "llama-3.3-70b-versatile")

	model, err = f.ModelByName("llama-3.1-8b-instant")
	check(model, err, "groq", "llama-3.1-8b-instant")

	model, err = f.ModelByName("unknown", "gpt-4o-mini")
	check(model, err, "openai", "gpt-4o-mini")

	// cached
	again, err := f.ModelByName("gpt-4o-mini")
	require.NoError(t, err)
	assert.Same(t, model, again)

	model, err = f.ModelByName("non-existent-model")
	check(model, err, "groq", "llama-3.3-70b-versatile")

	model, err = f.ModelByType("GOOGLEAI")
	check(model, err, "google", "gemini-2.0-flash")

	model, err = f.ModelByType("open_ai")
	check(model, err, "openai", "gpt-4o")

	model, err = f.ModelByType("BEDROCK")
	check(model, err, "bedrock", "us.anthropic.claude-sonnet-4-5-20250929-v1:0")

	_, err = f.ModelByType("UNSUPPORTED")
	assert.EqualError(t, err, "provider not found for type: UNSUPPORTED")

	model, err = f.AssistantModel("weather")
	check(model, err, "google", "gemini-2.5-flash")

	model, err = f.AssistantModel("other", "gemini-2.0-flash")
	check(model, err, "openai", "gpt-4o-mini")

	_, err = llmfactory.New(&llmfactory.Config{}).DefaultModel()
	assert.EqualError(t, err, "no providers configured")

	model, err = llmfactory.New(&llmfactory.Config{
		DefaultProvider: "non-existent",
		Providers:       cfg.Providers,
	}).DefaultModel()
	check(model, err, "groq", "llama-3.3-70b-versatile")
}

func Test_Load(t *testing.T) {
	setKeys(t)

	f, err := llmfactory.Load("testdata/llm.yaml")
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = llmfactory.Load("testdata/non-existent.yaml")
	require.Error(t, err)

	cfg, err := llmfactory.LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Providers)
}

func Test_CreateLLM(t *testing.T) {
	setKeys(t)

	tcases := []struct {
		apiType  string
		model    string
		expected llms.ProviderType
	}{
		{"OPENAI", "gpt-4o", llms.ProviderOpenAI},
		{"open_ai", "gpt-4o", llms.ProviderOpenAI},
		{"GROQ", "llama-3.3-70b-versatile", llms.ProviderGroq},
		{"PERPLEXITY", "sonar", llms.ProviderPerplexity},
		{"ANTHROPIC", "claude-sonnet-4-5", llms.ProviderAnthropic},
		{"GOOGLEAI", "gemini-2.5-flash", llms.ProviderGoogleAI},
		{"BEDROCK", "us.anthropic.claude-sonnet-4-5-20250929-v1:0", llms.ProviderBedrock},
		{"FAKE", "echo", llms.ProviderFake},
	}
	for _, tc := range tcases {
		t.Run(tc.apiType, func(t *testing.T) {
			m, err := llmfactory.CreateLLM(&llmfactory.ProviderConfig{
				DefaultModel: tc.model,
				OpenAI:       llmfactory.OpenAIConfig{APIType: tc.apiType},
				AWS:          llmfactory.AWSConfig{Region: "us-east-1", AccessKeyID: "key", SecretAccessKey: "secret"},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, m.GetProviderType())
			assert.Equal(t, tc.model, m.GetName())
		})
	}

	_, err := llmfactory.CreateLLM(&llmfactory.ProviderConfig{OpenAI: llmfactory.OpenAIConfig{APIType: "AZURE"}})
	assert.EqualError(t, err, "unsupported provider type: AZURE")
}

func Test_ParseModelSpec(t *testing.T) {
	tcases := []struct {
		spec     string
		provider llms.ProviderType
		model    string
		err      string
	}{
		{spec: "groq:llama-3.3-70b-versatile", provider: llms.ProviderGroq, model: "llama-3.3-70b-versatile"},
		{spec: "google_genai:gemini-2.0-flash", provider: llms.ProviderGoogleAI, model: "gemini-2.0-flash"},
		{spec: "OpenAI:gpt-4o", provider: llms.ProviderOpenAI, model: "gpt-4o"},
		{spec: "bedrock:us.anthropic.claude-sonnet-4-5-20250929-v1:0", provider: llms.ProviderBedrock, model: "us.anthropic.claude-sonnet-4-5-20250929-v1:0"},
		{spec: "anthropic:", provider: llms.ProviderAnthropic},
		{spec: "gpt-4o", err: `invalid model spec "gpt-4o", expected provider:model`},
		{spec: "azure:gpt-4o", err: `unsupported provider "azure"`},
	}
	for _, tc := range tcases {
		t.Run(tc.spec, func(t *testing.T) {
			ms, err := llmfactory.ParseModelSpec(tc.spec)
			if tc.err != "" {
				assert.EqualError(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.provider, ms.Provider)
			assert.Equal(t, tc.model, ms.Model)
		})
	}
}

func Test_FromSpec(t *testing.T) {
	setKeys(t)

	m, err := llmfactory.FromSpec("groq:llama-3.1-8b-instant")
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderGroq, m.GetProviderType())
	assert.Equal(t, "llama-3.1-8b-instant", m.GetName())

	_, err = llmfactory.FromSpec("nope")
	require.Error(t, err)
}

type fakeLLM struct {
	provider string
	model    string
}

func (f *fakeLLM) GetName() string {
	return f.model
}

func (f *fakeLLM) GetProviderType() llms.ProviderType {
	return llms.ProviderType(f.provider)
}

func (f *fakeLLM) GenerateContent(_ context.Context, _ []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}
