package gateway

import (
	"bytes"
	"fmt"
	"text/template"
)

// Prompt is a named prompt template together with the shape its reply must
// have. Templates use text/template syntax over the input struct.
type Prompt struct {
	ID     string
	Output *Schema
	tmpl   *template.Template
}

// NewPrompt parses text and panics on a malformed template; prompts are
// package-level values.
func NewPrompt(id, text string, output *Schema) *Prompt {
	return &Prompt{
		ID:     id,
		Output: output,
		tmpl:   template.Must(template.New(id).Option("missingkey=error").Parse(text)),
	}
}

func (p *Prompt) Render(input any) (string, error) {
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, input); err != nil {
		return "", fmt.Errorf("failed to render prompt %s: %w", p.ID, err)
	}
	return buf.String(), nil
}
