package bedrock

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// DefaultModel is the Bedrock model ID used when WithModel is not set.
const DefaultModel = "us.anthropic.claude-sonnet-4-5-20250929-v1:0"

// API is the subset of the Bedrock runtime client used by the LLM.
type API interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

type options struct {
	modelID         string
	client          API
	region          string
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
	baseEndpoint    string
}

// Option is an option for the Bedrock LLM.
type Option func(*options)

// WithModel sets the model ID.
func WithModel(modelID string) Option {
	return func(o *options) {
		o.modelID = modelID
	}
}

// WithClient uses a preconfigured Bedrock runtime client.
func WithClient(client API) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithStaticCredentials uses static keys instead of the default credentials chain.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(o *options) {
		o.accessKeyID = accessKeyID
		o.secretAccessKey = secretAccessKey
		o.sessionToken = sessionToken
	}
}

// WithBaseEndpoint overrides the Bedrock runtime endpoint.
func WithBaseEndpoint(endpoint string) Option {
	return func(o *options) {
		o.baseEndpoint = endpoint
	}
}
