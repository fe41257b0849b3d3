package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/earningsear/internal/common"
	"github.com/ternarybob/earningsear/internal/interfaces"
	"github.com/ternarybob/earningsear/internal/models"
	"github.com/ternarybob/earningsear/internal/services/retry"
)

// discordSecretField is the JSON field holding the webhook inside its secret.
const discordSecretField = "DISCORD_WEBHOOK_URL"

// Factory assembles the notification sinks for a run.
type Factory struct {
	config   common.NotifyConfig
	resolver interfaces.SecretResolver
	sns      SNSPublisher
	report   ReportRenderer
	client   *http.Client
	logger   arbor.ILogger
}

// NewFactory creates a sink factory. resolver, sns and report may be nil.
func NewFactory(config common.NotifyConfig, resolver interfaces.SecretResolver, sns SNSPublisher, report ReportRenderer, client *http.Client, logger arbor.ILogger) *Factory {
	return &Factory{
		config:   config,
		resolver: resolver,
		sns:      sns,
		report:   report,
		client:   client,
		logger:   logger,
	}
}

// ForSite returns the sinks for site. Local sites print instead of posting
// to Discord; hosted sites resolve the webhook from the secret store.
func (f *Factory) ForSite(ctx context.Context, site models.WorkflowConfig) (*Multi, error) {
	var sinks []interfaces.Notifier

	if site.IsLocal() {
		sinks = append(sinks, NewConsoleNotifier(nil, f.logger))
	} else if f.config.Discord.Enabled {
		webhook, err := f.discordWebhook(ctx, site)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, NewDiscordNotifier(webhook, f.config.Discord.Username, f.client, retry.NewPolicy(), f.logger))
	}

	if f.config.Email.Enabled {
		sinks = append(sinks, NewEmailNotifier(f.config.Email, f.report, f.logger))
	}

	if f.config.SNS.TopicARN != "" && f.sns != nil && !site.IsLocal() {
		sinks = append(sinks, NewSNSNotifier(f.sns, f.config.SNS.TopicARN, f.logger))
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	f.logger.Debug().Strs("sinks", names).Str("ticker", site.Ticker).Msg("Notification sinks ready")

	return NewMulti(f.logger, sinks...), nil
}

func (f *Factory) discordWebhook(ctx context.Context, site models.WorkflowConfig) (string, error) {
	ref := common.SecretRef{ID: site.DiscordWebhookARN, Field: discordSecretField}
	if ref.ID == "" {
		ref.ID = f.config.Discord.SecretARN
	}
	fallback := site.DiscordWebhookURL
	if fallback == "" {
		fallback = f.config.Discord.WebhookURL
	}
	if ref.ID == "" && fallback == "" {
		return "", fmt.Errorf("%w: discord_webhook_arn is required in hosted mode", models.ErrInvalidConfig)
	}

	webhook, err := common.ResolveAPIKey(ctx, f.resolver, "discord_webhook_url", ref, fallback)
	if err != nil {
		return "", fmt.Errorf("failed to resolve Discord webhook: %w", err)
	}
	return webhook, nil
}
