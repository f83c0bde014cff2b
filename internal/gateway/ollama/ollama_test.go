package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

func TestOllamaGenerate(t *testing.T) {
	var got struct {
		Model  string          `json:"model"`
		Prompt string          `json:"prompt"`
		Images []string        `json:"images"`
		Stream bool            `json:"stream"`
		Format *gateway.Schema `json:"format"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{
			"model":    got.Model,
			"response": `{"status":"no_data","ingredients":[]}`,
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	c := New(server.URL+"/", "llava")
	out, err := c.Generate(context.Background(), gateway.Request{
		PromptID: "extract",
		Prompt:   "read the label",
		Image:    &gateway.Image{Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}, MIMEType: "image/jpeg"},
		Schema:   gateway.Object("", map[string]*gateway.Schema{"status": gateway.String("")}, "status"),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"status":"no_data","ingredients":[]}`, out)
	assert.Equal(t, "llava", got.Model)
	assert.Equal(t, "read the label", got.Prompt)
	assert.False(t, got.Stream)
	assert.Len(t, got.Images, 1)
	require.NotNil(t, got.Format)
	assert.Equal(t, gateway.TypeObject, got.Format.Type)
}

func TestOllamaGenerateTextOnly(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"response":"{}"}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "llava").Generate(context.Background(), gateway.Request{Prompt: "x"})
	require.NoError(t, err)
	_, hasImages := raw["images"]
	assert.False(t, hasImages)
}

func TestOllamaGenerateStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "llava").Generate(context.Background(), gateway.Request{Prompt: "x"})

	var se *gateway.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "model is loading", se.Message)
	assert.Equal(t, gateway.FailureOverloaded, gateway.Classify(err))
}
