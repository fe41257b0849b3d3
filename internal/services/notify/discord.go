package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/services/retry"
)

// DiscordNotifier posts digests to a Discord channel webhook.
type DiscordNotifier struct {
	webhookURL string
	username   string
	client     *http.Client
	retry      *retry.Policy
	logger     arbor.ILogger
}

var _ interfaces.Notifier = (*DiscordNotifier)(nil)

// NewDiscordNotifier creates a webhook notifier
func NewDiscordNotifier(webhookURL, username string, client *http.Client, policy *retry.Policy, logger arbor.ILogger) *DiscordNotifier {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if policy == nil {
		policy = retry.NewPolicy()
	}
	return &DiscordNotifier{
		webhookURL: webhookURL,
		username:   username,
		client:     client,
		retry:      policy,
		logger:     logger,
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

type webhookPayload struct {
	Content  string `json:"content"`
	Username string `json:"username,omitempty"`
}

// Notify posts the digest. Discord answers 204 on success; 429 and 5xx are retried.
func (d *DiscordNotifier) Notify(ctx context.Context, n interfaces.Notification) error {
	payload, err := json.Marshal(webhookPayload{Content: n.Message.String(), Username: d.username})
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	var detail string
	status, err := d.retry.Do(ctx, d.logger, func(int) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail = string(body)
		return resp.StatusCode, nil
	})
	if err != nil {
		return fmt.Errorf("discord webhook failed: %w", err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("discord webhook returned status %d: %s", status, detail)
	}

	d.logger.Info().
		Str("ticker", n.Ticker).
		Int("length", n.Message.Len()).
		Msg("Posted digest to Discord")
	return nil
}
