package chatmodel

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidChatContext is returned when ctx carries no ChatContext.
	ErrInvalidChatContext = errors.New("invalid chat context")
	// ErrFailedUnmarshalInput is returned by tools that can not decode the
	// arguments produced by the model.
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
)

// FewShotExample is a prompt and the expected completion.
type FewShotExample struct {
	Prompt     string `json:"prompt" yaml:"prompt"`
	Completion string `json:"completion" yaml:"completion"`
}

// FewShotExamples is a list of examples added after the system prompt.
type FewShotExamples []FewShotExample
