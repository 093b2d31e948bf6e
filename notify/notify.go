// Package notify carries fired, non-suppressed alerts to their
// configured channels. Channel management lives outside the engine; this
// package only knows how to post a structured payload to a webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"watchpost/model"
)

// Payload is the structured notification handed to a channel.
type Payload struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	Severity     string `json:"severity"`
	ResourceName string `json:"resourceName"`
}

// Dispatcher delivers one payload to one channel.
type Dispatcher interface {
	Send(ctx context.Context, ch model.NotificationChannel, p Payload) error
}

// WebhookDispatcher posts JSON to channel webhooks, shaping the body per
// channel kind (slack, teams, or a generic JSON POST).
type WebhookDispatcher struct {
	Client *http.Client
}

func NewWebhookDispatcher(timeout time.Duration) *WebhookDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookDispatcher{Client: &http.Client{Timeout: timeout}}
}

func (d *WebhookDispatcher) Send(ctx context.Context, ch model.NotificationChannel, p Payload) error {
	if ch.WebhookURL == "" {
		return fmt.Errorf("channel %s has no webhook URL", ch.Name)
	}

	var body interface{}
	switch ch.Kind {
	case "slack":
		body = map[string]string{
			"text": fmt.Sprintf("*%s*\n%s\nResource: %s | Severity: %s",
				p.Title, p.Message, p.ResourceName, p.Severity),
		}
	case "teams":
		body = map[string]interface{}{
			"@type":    "MessageCard",
			"@context": "http://schema.org/extensions",
			"themeColor": func() string {
				if p.Severity == model.SeverityCritical {
					return "d63333"
				}
				return "e6a700"
			}(),
			"summary": p.Title,
			"title":   p.Title,
			"text":    p.Message,
			"sections": []map[string]interface{}{{
				"facts": []map[string]string{
					{"name": "Resource", "value": p.ResourceName},
					{"name": "Severity", "value": p.Severity},
				},
			}},
		}
	default:
		body = p
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ch.WebhookURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", ch.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("channel %s returned %s", ch.Name, resp.Status)
	}
	return nil
}
