package digest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadops-cli/internal/config"
)

// Message is the payload of a chat webhook post.
type Message struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Webhook posts text messages to a Telegram-compatible sendMessage endpoint.
// Consecutive posts are spaced out by the configured interval.
type Webhook struct {
	url     string
	chatID  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhook creates a Webhook from configuration.
func NewWebhook(cfg config.DigestConfig) *Webhook {
	limit := rate.Inf
	if cfg.IntervalSecs > 0 {
		limit = rate.Every(time.Duration(cfg.IntervalSecs) * time.Second)
	}
	return &Webhook{
		url:     cfg.WebhookURL,
		chatID:  cfg.ChatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Send posts one message.
func (w *Webhook) Send(ctx context.Context, text string) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "digest: rate limit wait")
	}

	payload, err := json.Marshal(Message{ChatID: w.chatID, Text: text})
	if err != nil {
		return eris.Wrap(err, "digest: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "digest: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "digest: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("digest: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
