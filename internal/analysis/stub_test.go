package analysis

import (
	"context"

	"github.com/vbonduro/eatinformed/internal/gateway"
)

// stubClient answers each prompt id with a canned reply or error and records
// every request.
type stubClient struct {
	replies map[string]string
	errs    map[string]error
	calls   []gateway.Request
}

func (c *stubClient) Name() string { return "stub" }

func (c *stubClient) Generate(_ context.Context, req gateway.Request) (string, error) {
	c.calls = append(c.calls, req)
	if err := c.errs[req.PromptID]; err != nil {
		return "", err
	}
	return c.replies[req.PromptID], nil
}

func replying(promptID, reply string) *stubClient {
	return &stubClient{replies: map[string]string{promptID: reply}}
}

func failing(promptID string, err error) *stubClient {
	return &stubClient{errs: map[string]error{promptID: err}}
}

var testImage = &gateway.Image{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: "image/png"}
