// Package schema builds JSON schemas for tool parameters, either by reflection
// over Go input types or by conversion of schemas received from MCP servers.
package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var (
	cache   = make(map[reflect.Type]*Schema)
	cacheMu sync.Mutex
)

// Schema holds the reflected schema of a type and its function parameters form.
type Schema struct {
	RawSchema *jsonschema.Schema
	// Parameters is the flattened schema used as function parameters
	Parameters *jsonschema.Schema
}

// New creates a schema from the given type, the result is cached.
func New(t reflect.Type) (*Schema, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if s, ok := cache[t]; ok {
		return s, nil
	}

	raw := JSONSchema(t)
	params, err := ToFunctionSchema(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "schema for %s", t.String())
	}
	s := &Schema{
		RawSchema:  raw,
		Parameters: params,
	}
	cache[t] = s
	return s, nil
}

func (s *Schema) String() string {
	js, _ := json.MarshalIndent(s.Parameters, "", "\t")
	return string(js)
}

// ToFunctionSchema flattens a reflected schema: the root definition becomes
// the object and all $ref to local definitions are inlined.
func ToFunctionSchema(raw *jsonschema.Schema) (*jsonschema.Schema, error) {
	rootID := strings.TrimPrefix(raw.Ref, "#/$defs/")

	defs := make(map[string]*jsonschema.Schema)
	root := raw
	for name, def := range raw.Definitions {
		if name == rootID {
			root = def
		} else {
			defs[name] = def
		}
	}

	res := &jsonschema.Schema{
		Type:       root.Type,
		Properties: root.Properties,
		Required:   root.Required,
	}
	if res.Properties == nil {
		res.Properties = orderedmap.New[string, *jsonschema.Schema]()
	}
	if err := resolveRefs(res.Properties, defs); err != nil {
		return nil, err
	}
	return res, nil
}

func resolveRefs(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs map[string]*jsonschema.Schema) error {
	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Ref != "" {
			def, err := lookupRef(pair.Value.Ref, defs)
			if err != nil {
				return err
			}
			pair.Value = def
		}
		child := pair.Value
		if child.Properties != nil {
			if err := resolveRefs(child.Properties, defs); err != nil {
				return err
			}
		}
		if child.Items != nil && child.Items.Ref != "" {
			def, err := lookupRef(child.Items.Ref, defs)
			if err != nil {
				return err
			}
			child.Items = def
		}
	}
	return nil
}

func lookupRef(ref string, defs map[string]*jsonschema.Schema) (*jsonschema.Schema, error) {
	name := strings.TrimPrefix(ref, "#/$defs/")
	def, ok := defs[name]
	if !ok {
		return nil, errors.Newf("definition not found: %s", ref)
	}
	return def, nil
}

// JSONSchema returns the draft-07 JSON schema of the type.
func JSONSchema(t reflect.Type) *jsonschema.Schema {
	jsonschema.Version = "http://json-schema.org/draft-07/schema#"

	r := new(jsonschema.Reflector)
	r.ExpandedStruct = true
	r.DoNotReference = true
	r.AllowAdditionalProperties = true

	// struct names collide across packages, qualify them with a hash of the path
	r.Namer = func(t reflect.Type) string {
		if t.Kind() != reflect.Struct {
			return t.Name()
		}
		fullname := t.PkgPath() + "/" + t.Name()
		return t.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(fullname), 10)
	}

	return r.ReflectFromType(t)
}

// FromAny converts a schema in any JSON-marshalable form, for example a
// map[string]any received from an MCP server, into a jsonschema.Schema.
func FromAny(v any) (*jsonschema.Schema, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := &jsonschema.Schema{}
	if err = json.Unmarshal(js, s); err != nil {
		return nil, errors.WithStack(err)
	}
	return s, nil
}

// MustFromAny is FromAny that panics on error.
func MustFromAny(v any) *jsonschema.Schema {
	s, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return s
}

// ObjectSchema converts v with FromAny and makes sure the result has
// "type": "object" and non-nil properties, as providers require for tools.
func ObjectSchema(v any) (*jsonschema.Schema, error) {
	if v == nil {
		return emptyObject(), nil
	}
	s, err := FromAny(v)
	if err != nil {
		return nil, err
	}
	if s.Type == "" {
		s.Type = "object"
	}
	if s.Properties == nil {
		s.Properties = orderedmap.New[string, *jsonschema.Schema]()
	}
	return s, nil
}

func emptyObject() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
}

// PropertiesMap returns the properties of s as a plain map, used by provider
// SDKs that take untyped JSON.
func PropertiesMap(s *jsonschema.Schema) map[string]any {
	res := map[string]any{}
	if s == nil || s.Properties == nil {
		return res
	}
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		js, err := json.Marshal(pair.Value)
		if err != nil {
			continue
		}
		var m map[string]any
		if json.Unmarshal(js, &m) == nil {
			res[pair.Key] = m
		}
	}
	return res
}

// ToMap returns s as a plain JSON map.
func ToMap(s *jsonschema.Schema) map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	js, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	_ = json.Unmarshal(js, &m)
	return m
}
