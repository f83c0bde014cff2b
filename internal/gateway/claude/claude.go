// Package claude implements gateway.Client on the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

// maxTokens bounds a single reply; the assessment with per-ingredient notes
// is the largest response at roughly 1500 tokens.
const maxTokens = 4096

const systemPrompt = "You are a food-label analysis service. Reply with a single JSON object and nothing else."

type Client struct {
	client *anthropic.Client
	model  string
}

func New(apiKey, model string, opts ...anthropic.ClientOption) *Client {
	return &Client{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (c *Client) Name() string {
	return "claude"
}

func (c *Client) Generate(ctx context.Context, req gateway.Request) (string, error) {
	prompt, err := withSchema(req.Prompt, req.Schema)
	if err != nil {
		return "", err
	}

	var content []anthropic.MessageContent
	if req.Image != nil {
		content = append(content, anthropic.NewImageMessageContent(anthropic.MessageContentSource{
			Type:      "base64",
			MediaType: normaliseMIME(req.Image.MIMEType),
			Data:      base64.StdEncoding.EncodeToString(req.Image.Data),
		}))
	}
	content = append(content, anthropic.NewTextMessageContent(prompt))

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(c.model),
		System:    systemPrompt,
		MaxTokens: maxTokens,
		Messages: []anthropic.Message{{
			Role:    anthropic.RoleUser,
			Content: content,
		}},
	})
	if err != nil {
		return "", wrapError(err)
	}

	for _, blk := range resp.Content {
		if blk.Type == anthropic.MessagesContentTypeText {
			return blk.GetText(), nil
		}
	}
	return "", nil
}

// withSchema appends the JSON Schema of the expected reply; the Messages API
// has no response-schema parameter.
func withSchema(prompt string, schema *gateway.Schema) (string, error) {
	if schema == nil {
		return prompt, nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}
	return prompt + "\n\nRespond with JSON that conforms to this JSON Schema:\n" + string(data), nil
}

func wrapError(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		return &gateway.StatusError{
			Provider: "claude",
			Code:     statusForType(string(apiErr.Type)),
			Message:  apiErr.Message,
			Err:      err,
		}
	}
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return &gateway.StatusError{
			Provider: "claude",
			Code:     reqErr.StatusCode,
			Message:  http.StatusText(reqErr.StatusCode),
			Err:      err,
		}
	}
	return fmt.Errorf("failed to call claude: %w", err)
}

// statusForType maps Anthropic error types to the HTTP status the API sends
// with them.
func statusForType(t string) int {
	switch t {
	case "overloaded_error":
		return 529
	case "rate_limit_error":
		return http.StatusTooManyRequests
	case "timeout_error":
		return http.StatusGatewayTimeout
	case "invalid_request_error":
		return http.StatusBadRequest
	case "authentication_error":
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// normaliseMIME maps browser MIME types to the values the Anthropic API
// accepts. Unknown types are coerced to jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
