package tools_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addInput struct {
	A int `json:"a" jsonschema:"description=first number"`
	B int `json:"b" jsonschema:"description=second number"`
}

type addOutput struct {
	Sum int `json:"sum"`
}

func newAdd(t *testing.T) *tools.Func[addInput, addOutput] {
	add, err := tools.NewFunc("add", "Add two numbers", func(_ context.Context, in *addInput) (*addOutput, error) {
		return &addOutput{Sum: in.A + in.B}, nil
	})
	require.NoError(t, err)
	return add
}

func Test_Func(t *testing.T) {
	ctx := context.Background()
	add := newAdd(t)
	assert.Equal(t, "add", add.Name())
	assert.Equal(t, "Add two numbers", add.Description())
	assert.NotNil(t, add.Parameters())

	out, err := add.Call(ctx, `{"a": 1, "b": 2}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":3}`, out)

	// fenced model output
	out, err = add.Call(ctx, "```json\n{\"a\": 2, \"b\": 2}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"sum":4}`, out)

	_, err = add.Call(ctx, `not json at all [`)
	assert.ErrorIs(t, err, chatmodel.ErrFailedUnmarshalInput)

	echo, err := tools.NewFunc("echo", "Echo", func(_ context.Context, in *struct{ Text string }) (*string, error) {
		if in.Text == "" {
			return nil, errors.New("empty")
		}
		return &in.Text, nil
	})
	require.NoError(t, err)
	out, err = echo.Call(ctx, `{"Text":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	_, err = echo.Call(ctx, ``)
	assert.EqualError(t, err, "empty")
}

func Test_Registry(t *testing.T) {
	add := newAdd(t)
	dup, err := tools.NewFunc("ADD", "duplicate", func(_ context.Context, in *addInput) (*addOutput, error) {
		return nil, nil
	})
	require.NoError(t, err)

	r, err := tools.NewRegistry(add, dup)
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
	assert.Same(t, add, r.Get("Add"))
	assert.Nil(t, r.Get("multiply"))

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "add", defs[0].Function.Name)
	assert.Equal(t, "object", defs[0].Function.Parameters.Type)
	require.NotNil(t, defs[0].Function.Parameters.Properties)
	_, ok := defs[0].Function.Parameters.Properties.Get("a")
	assert.True(t, ok)

	var empty *tools.Registry
	assert.Equal(t, 0, empty.Len())
	assert.Nil(t, empty.Get("add"))
	assert.Empty(t, empty.Definitions())
}

func Test_Descriptions(t *testing.T) {
	add := newAdd(t)
	desc := tools.GetDescriptions(add)
	assert.Contains(t, desc, "```json")
	assert.Contains(t, desc, `"Name": "add"`)
	assert.Equal(t, []string{"add"}, tools.Names(add))
}
