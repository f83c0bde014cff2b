// Package ollama implements gateway.Client on a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

type generateRequest struct {
	Model  string          `json:"model"`
	Prompt string          `json:"prompt"`
	Images []string        `json:"images,omitempty"`
	Stream bool            `json:"stream"`
	Format *gateway.Schema `json:"format,omitempty"`
}

type Client struct {
	host   string
	model  string
	client *http.Client
}

func New(host, model string) *Client {
	return &Client{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{},
	}
}

func (c *Client) Name() string {
	return "ollama"
}

func (c *Client) Generate(ctx context.Context, req gateway.Request) (string, error) {
	body := generateRequest{
		Model:  c.model,
		Prompt: req.Prompt,
		Stream: false,
		Format: req.Schema,
	}
	if req.Image != nil {
		body.Images = []string{base64.StdEncoding.EncodeToString(req.Image.Data)}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &gateway.StatusError{
			Provider: "ollama",
			Code:     resp.StatusCode,
			Message:  strings.TrimSpace(string(errBody)),
		}
	}

	var respBody struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return respBody.Response, nil
}
