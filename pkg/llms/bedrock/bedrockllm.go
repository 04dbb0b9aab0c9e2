// Package bedrock implements llms.Model over AWS Bedrock InvokeModel for
// Anthropic Claude models.
package bedrock

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent/pkg/llms", "bedrock")

// ErrUnsupportedProvider is returned for model IDs of non Anthropic families.
var ErrUnsupportedProvider = errors.New("bedrock: unsupported provider")

// LLM is a Bedrock LLM implementation.
type LLM struct {
	modelID string
	client  API
}

var _ llms.Model = (*LLM)(nil)

// New creates a new Bedrock LLM.
func New(ctx context.Context, opts ...Option) (*LLM, error) {
	o := &options{
		modelID: DefaultModel,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		if o.accessKeyID != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(o.accessKeyID, o.secretAccessKey, o.sessionToken)))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "bedrock: failed to load AWS config")
		}
		o.client = bedrockruntime.NewFromConfig(cfg, func(bo *bedrockruntime.Options) {
			if o.baseEndpoint != "" {
				bo.BaseEndpoint = aws.String(o.baseEndpoint)
			}
		})
	}

	return &LLM{
		client:  o.client,
		modelID: o.modelID,
	}, nil
}

// GetName implements the Model interface.
func (l *LLM) GetName() string {
	return l.modelID
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// GenerateContent implements llms.Model.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.NewCallOptions(options...)
	modelID := values.StringsCoalesce(opts.Model, l.modelID)

	if provider := ModelProvider(modelID); provider != "anthropic" {
		return nil, errors.WithMessagef(ErrUnsupportedProvider, "%q", provider)
	}

	logger.ContextKV(ctx, xlog.DEBUG, "model", modelID, "messages", len(messages))
	return createAnthropicCompletion(ctx, l.client, modelID, messages, opts)
}

// ModelProvider returns the model family of a Bedrock model ID, handling
// inference profiles such as "us.anthropic.claude-3-5-sonnet-20241022-v2:0"
// and direct IDs such as "anthropic.claude-3-sonnet-20240229-v1:0".
func ModelProvider(modelID string) string {
	parts := strings.Split(modelID, ".")
	if len(parts) >= 2 && len(parts[0]) == 2 && strings.ToLower(parts[0]) == parts[0] {
		return parts[1]
	}
	return parts[0]
}
