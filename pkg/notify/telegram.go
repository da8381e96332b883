package notify

import (
	"context"
	"fmt"
	"strings"
)

const telegramAPI = "https://api.telegram.org"

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" toml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chat_id" toml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	BaseURL  string `yaml:"base_url" toml:"base_url"`
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	config TelegramConfig
	sender
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig) *TelegramNotifier {
	if cfg.BaseURL == "" {
		cfg.BaseURL = telegramAPI
	}
	return &TelegramNotifier{config: cfg, sender: newSender(ChannelTelegram)}
}

func (t *TelegramNotifier) Channel() Channel { return ChannelTelegram }

// Send sends msg as a MarkdownV2 message.
func (t *TelegramNotifier) Send(ctx context.Context, msg Message) error {
	text := escapeMarkdown(msg.Body)
	if msg.Title != "" {
		text = fmt.Sprintf("*%s*\n\n%s", escapeMarkdown(msg.Title), text)
	}
	if msg.URL != "" {
		text += fmt.Sprintf("\n\n[Open](%s)", msg.URL)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.config.BaseURL, "/"), t.config.BotToken)
	return t.postJSON(ctx, url, nil, map[string]any{
		"chat_id":                  t.config.ChatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	})
}

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\", "_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-", "=", "\\=",
	"|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
