package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// WebhookClient posts a JSON body to a URL and reports the status code and
// body text. Abstracted so tests can fake the external endpoint.
type WebhookClient interface {
	Post(ctx context.Context, url string, body any) (int, string, error)
}

type httpWebhookClient struct {
	client *http.Client
}

func NewWebhookClient() WebhookClient {
	return &httpWebhookClient{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpWebhookClient) Post(ctx context.Context, url string, body any) (int, string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	return resp.StatusCode, string(text), nil
}
