package tools

import (
	"context"
	"reflect"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/mcpagent/pkg/llmutils"
	"github.com/effective-security/mcpagent/pkg/schema"
	"github.com/invopop/jsonschema"
)

//go:generate mockgen -source=tools.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// ITool is a tool for the llm agent to interact with different applications.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	Parameters() any

	// Call executes the tool with the given input and returns the result.
	// If the tool fails to parse the input, it should return ErrFailedUnmarshalInput error.
	Call(context.Context, string) (string, error)
}

// Callback receives tool events.
type Callback interface {
	OnToolStart(ctx context.Context, tool ITool, assistantName, input string)
	OnToolEnd(ctx context.Context, tool ITool, assistantName, input string, output string)
	OnToolError(ctx context.Context, tool ITool, assistantName, input string, err error)
}

// Tool is a typed tool.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns a JSON block with names and descriptions of the tools.
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}

// Names returns the sorted tool names.
func Names(list ...ITool) []string {
	names := make([]string, 0, len(list))
	for _, tool := range list {
		names = append(names, tool.Name())
	}
	sort.Strings(names)
	return names
}

// Definition returns the function definition sent to the model.
func Definition(tool ITool) (llms.Tool, error) {
	params, err := schema.ObjectSchema(tool.Parameters())
	if err != nil {
		return llms.Tool{}, errors.WithMessagef(err, "tool %s: invalid parameters", tool.Name())
	}
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  params,
		},
	}, nil
}

// Registry holds tools keyed by the lower case name. The first tool with a
// given name wins.
type Registry struct {
	byName map[string]ITool
	list   []ITool
	defs   []llms.Tool
}

// NewRegistry returns a registry with the tools.
func NewRegistry(list ...ITool) (*Registry, error) {
	r := &Registry{byName: make(map[string]ITool)}
	if err := r.Add(list...); err != nil {
		return nil, err
	}
	return r, nil
}

// Add registers the tools, names already registered are skipped.
func (r *Registry) Add(list ...ITool) error {
	if r.byName == nil {
		r.byName = make(map[string]ITool)
	}
	for _, tool := range list {
		key := strings.ToLower(tool.Name())
		if r.byName[key] != nil {
			continue
		}
		def, err := Definition(tool)
		if err != nil {
			return err
		}
		r.byName[key] = tool
		r.list = append(r.list, tool)
		r.defs = append(r.defs, def)
	}
	return nil
}

// Get returns the tool by name, case insensitive.
func (r *Registry) Get(name string) ITool {
	if r == nil {
		return nil
	}
	return r.byName[strings.ToLower(name)]
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []ITool {
	if r == nil {
		return nil
	}
	return r.list
}

// Definitions returns the function definitions of the registered tools.
func (r *Registry) Definitions() []llms.Tool {
	if r == nil {
		return nil
	}
	return r.defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.list)
}

// Func is a typed tool backed by a function. The parameters schema is
// reflected from I.
type Func[I any, O any] struct {
	name        string
	description string
	run         func(context.Context, *I) (*O, error)
	params      *jsonschema.Schema
}

var _ Tool[struct{}, struct{}] = (*Func[struct{}, struct{}])(nil)

// NewFunc returns a tool calling fn with the decoded input.
func NewFunc[I any, O any](name, description string, fn func(context.Context, *I) (*O, error)) (*Func[I, O], error) {
	var in I
	sc, err := schema.New(reflect.TypeOf(in))
	if err != nil {
		return nil, err
	}
	return &Func[I, O]{
		name:        name,
		description: description,
		run:         fn,
		params:      sc.Parameters,
	}, nil
}

// Name implements ITool.
func (f *Func[I, O]) Name() string {
	return f.name
}

// Description implements ITool.
func (f *Func[I, O]) Description() string {
	return f.description
}

// Parameters implements ITool.
func (f *Func[I, O]) Parameters() any {
	return f.params
}

// Run implements Tool.
func (f *Func[I, O]) Run(ctx context.Context, in *I) (*O, error) {
	return f.run(ctx, in)
}

// Call decodes the input, runs the function and returns the output as JSON,
// or as is for string outputs.
func (f *Func[I, O]) Call(ctx context.Context, input string) (string, error) {
	var in I
	if err := llmutils.DecodeJSON(input, &in); err != nil {
		return "", errors.WithMessagef(chatmodel.ErrFailedUnmarshalInput, "%s: %s", f.name, err.Error())
	}
	out, err := f.run(ctx, &in)
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	if s, ok := any(*out).(string); ok {
		return s, nil
	}
	return llmutils.ToJSON(out), nil
}
