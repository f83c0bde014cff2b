package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Invoke renders p with input, makes exactly one call through c and decodes
// the JSON reply into out. input and out are validated with their `validate`
// struct tags. image may be nil for text-only prompts.
func Invoke(ctx context.Context, c Client, p *Prompt, input any, image *Image, out any) error {
	if isStruct(input) {
		if err := validate.Struct(input); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidInput, p.ID, err)
		}
	}

	text, err := p.Render(input)
	if err != nil {
		return err
	}

	raw, err := c.Generate(ctx, Request{
		PromptID: p.ID,
		Prompt:   text,
		Image:    image,
		Schema:   p.Output,
	})
	if err != nil {
		return fmt.Errorf("%s call %s failed: %w", c.Name(), p.ID, err)
	}

	body := ExtractJSON(raw)
	if body == "" {
		return fmt.Errorf("%s: %w", p.ID, ErrNoOutput)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidOutput, p.ID, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidOutput, p.ID, err)
	}
	return nil
}

// ExtractJSON returns the JSON object in a model reply, removing Markdown
// code fences and any prose before the first '{' or after the last '}'.
// It returns "" when the reply holds no object.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

func isStruct(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}
