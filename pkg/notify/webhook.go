package notify

import "context"

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL     string            `yaml:"url" toml:"url" env:"NEWSDESK_WEBHOOK_URL"`
	Headers map[string]string `yaml:"headers" toml:"headers"`
}

// WebhookNotifier posts each Message as JSON to a URL.
type WebhookNotifier struct {
	config WebhookConfig
	sender
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{config: cfg, sender: newSender(ChannelWebhook)}
}

func (w *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Send posts msg to the webhook URL.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	return w.postJSON(ctx, w.config.URL, w.config.Headers, msg)
}
