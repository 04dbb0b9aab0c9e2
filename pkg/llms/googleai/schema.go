package googleai

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// ConvertTools converts tool definitions to genai function declarations.
func ConvertTools(tools []llms.Tool) ([]*genai.Tool, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for i, tool := range tools {
		if tool.Type != "function" || tool.Function == nil {
			return nil, errors.Errorf("tool [%d]: unsupported type %q, want 'function'", i, tool.Type)
		}

		decl := &genai.FunctionDeclaration{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
		}
		if tool.Function.Parameters != nil {
			s, err := ConvertJSONSchema(tool.Function.Parameters)
			if err != nil {
				return nil, errors.Wrapf(err, "tool [%d]", i)
			}
			decl.Parameters = s
		}
		decls = append(decls, decl)
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// ConvertJSONSchema converts a JSON schema to a genai.Schema.
func ConvertJSONSchema(js *jsonschema.Schema) (*genai.Schema, error) {
	if js == nil {
		return nil, nil
	}

	out := &genai.Schema{
		Type:        ConvertSchemaType(js.Type),
		Description: js.Description,
		Required:    js.Required,
	}
	for _, e := range js.Enum {
		if s, ok := e.(string); ok {
			out.Enum = append(out.Enum, s)
		}
	}

	if js.Properties != nil && js.Properties.Len() > 0 {
		out.Properties = make(map[string]*genai.Schema, js.Properties.Len())
		for pair := js.Properties.Oldest(); pair != nil; pair = pair.Next() {
			prop, err := ConvertJSONSchema(pair.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "property [%s]", pair.Key)
			}
			out.Properties[pair.Key] = prop
		}
	}

	if js.Items != nil {
		items, err := ConvertJSONSchema(js.Items)
		if err != nil {
			return nil, errors.Wrap(err, "items")
		}
		out.Items = items
	}

	return out, nil
}

// ConvertSchemaType converts a JSON schema type name to a genai.Type.
func ConvertSchemaType(dt string) genai.Type {
	switch dt {
	case "object":
		return genai.TypeObject
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeUnspecified
	}
}

func float32Ptr(f float64) *float32 {
	if f == 0 {
		return nil
	}
	v := float32(f)
	return &v
}

func int32Ptr(i int) *int32 {
	if i == 0 {
		return nil
	}
	v := int32(i) //nolint:gosec
	return &v
}
