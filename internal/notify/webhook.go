package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/desertthunder/ytpub/internal/shared"
)

// Renderer turns a message into the text body of a delivery.
type Renderer func(Message) string

// WebhookOpts configures a [WebhookNotifier].
type WebhookOpts struct {
	Sender    string
	Recipient string
	Timeout   time.Duration
	Client    *http.Client
	Render    Renderer // defaults to [PlainText]
}

// WebhookNotifier posts messages as JSON to an HTTP endpoint (a mail relay or chat hook).
type WebhookNotifier struct {
	url    string
	client *http.Client
	opts   WebhookOpts
}

// webhookPayload is the JSON document sent to the endpoint.
type webhookPayload struct {
	Sender    string `json:"sender,omitempty"`
	Recipient string `json:"recipient,omitempty"`
	Text      string `json:"text"`
	Message
}

// NewWebhookNotifier creates a notifier posting to url.
func NewWebhookNotifier(url string, opts WebhookOpts) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: webhook url", shared.ErrMissingConfig)
	}
	if opts.Render == nil {
		opts.Render = PlainText
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &WebhookNotifier{url: url, client: client, opts: opts}, nil
}

// Notify posts msg as JSON and fails on transport errors and non-2xx answers.
func (n *WebhookNotifier) Notify(ctx context.Context, msg Message) error {
	payload := webhookPayload{
		Sender:    n.opts.Sender,
		Recipient: n.opts.Recipient,
		Text:      n.opts.Render(msg),
		Message:   msg,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNotifyFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook answered %d", shared.ErrNotifyFailed, resp.StatusCode)
	}
	return nil
}
