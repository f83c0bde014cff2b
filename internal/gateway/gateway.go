// Package gateway is the single point through which the application talks to
// a hosted multimodal model. A Gateway is chosen once at start-up and is
// either available, wrapping a provider Client, or unavailable when the
// provider is not configured.
package gateway

import "context"

// Image is an uploaded label photo.
type Image struct {
	Data     []byte
	MIMEType string
}

// Request is one rendered model call.
type Request struct {
	PromptID string
	Prompt   string
	Image    *Image
	Schema   *Schema
}

// Client performs a single model call and returns the raw text reply, which
// is expected to be JSON matching req.Schema. Implementations do not retry.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Gateway holds an optional Client. The zero value is unavailable.
type Gateway struct {
	client Client
	reason string
}

func Available(c Client) Gateway {
	return Gateway{client: c}
}

// Unavailable returns a disabled gateway. reason is shown to users, e.g.
// "GOOGLE_API_KEY is not configured".
func Unavailable(reason string) Gateway {
	return Gateway{reason: reason}
}

// Client returns the provider client and whether the gateway is available.
func (g Gateway) Client() (Client, bool) {
	return g.client, g.client != nil
}

func (g Gateway) Reason() string {
	if g.client == nil && g.reason == "" {
		return "no model provider is configured"
	}
	return g.reason
}
