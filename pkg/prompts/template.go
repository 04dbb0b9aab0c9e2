package prompts

import (
	"bytes"
	"slices"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/cockroachdb/errors"
	"github.com/nikolalohinski/gonja"
)

// TemplateFormat is the syntax of a prompt template.
type TemplateFormat string

const (
	// TemplateFormatGoTemplate is text/template with sprig functions.
	TemplateFormatGoTemplate TemplateFormat = "go-template"
	// TemplateFormatJinja2 is Jinja2.
	TemplateFormatJinja2 TemplateFormat = "jinja2"
)

// ErrMissingInput is returned when a declared input variable has no value.
var ErrMissingInput = errors.New("missing input variable")

// RenderTemplate renders the template in the given format.
func RenderTemplate(tmpl string, format TemplateFormat, values map[string]any) (string, error) {
	switch format {
	case TemplateFormatGoTemplate, "":
		return renderGoTemplate(tmpl, values)
	case TemplateFormatJinja2:
		return renderJinja2(tmpl, values)
	default:
		return "", errors.Newf("unsupported template format: %s", format)
	}
}

func renderGoTemplate(tmpl string, values map[string]any) (string, error) {
	t, err := template.New("prompt").
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Parse(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template")
	}
	var buf bytes.Buffer
	if err = t.Execute(&buf, values); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return buf.String(), nil
}

func renderJinja2(tmpl string, values map[string]any) (string, error) {
	t, err := gonja.FromString(tmpl)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse template")
	}
	out, err := t.Execute(gonja.Context(values))
	if err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return out, nil
}

// PromptTemplate is a template with declared input variables.
type PromptTemplate struct {
	Template       string
	InputVariables []string
	TemplateFormat TemplateFormat
	// PartialVariables are defaults merged under the call values.
	PartialVariables map[string]any
}

var _ FormatPrompter = PromptTemplate{}

// NewPromptTemplate returns a Go template prompt.
func NewPromptTemplate(tmpl string, inputVars []string) PromptTemplate {
	return PromptTemplate{
		Template:       tmpl,
		InputVariables: inputVars,
		TemplateFormat: TemplateFormatGoTemplate,
	}
}

// NewJinjaPromptTemplate returns a Jinja2 prompt.
func NewJinjaPromptTemplate(tmpl string, inputVars []string) PromptTemplate {
	return PromptTemplate{
		Template:       tmpl,
		InputVariables: inputVars,
		TemplateFormat: TemplateFormatJinja2,
	}
}

// Format renders the template.
func (p PromptTemplate) Format(values map[string]any) (string, error) {
	merged := make(map[string]any, len(p.PartialVariables)+len(values))
	for k, v := range p.PartialVariables {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	for _, name := range p.InputVariables {
		if _, ok := merged[name]; !ok {
			return "", errors.WithMessage(ErrMissingInput, name)
		}
	}
	return RenderTemplate(p.Template, p.TemplateFormat, merged)
}

// FormatPrompt renders the template to a StringPromptValue.
func (p PromptTemplate) FormatPrompt(values map[string]any) (PromptValue, error) {
	s, err := p.Format(values)
	if err != nil {
		return nil, err
	}
	return StringPromptValue(s), nil
}

// GetInputVariables returns the declared input variables.
func (p PromptTemplate) GetInputVariables() []string {
	return slices.Clone(p.InputVariables)
}
