// Package notify delivers short text notifications to webhook and Telegram
// channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/RobinCoderZhao/newsdesk/pkg/retry"
)

// Channel names a notification channel.
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWebhook  Channel = "webhook"
)

const defaultTimeout = 10 * time.Second

// Message is one notification. Body is plain text with one item per line.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Notifier sends messages to one channel.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}

// Config enables channels. A channel with empty settings is skipped.
type Config struct {
	Webhook  WebhookConfig  `yaml:"webhook" toml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
}

// Dispatcher fans a message out to every registered channel.
type Dispatcher struct {
	notifiers map[Channel]Notifier
	logger    *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		notifiers: make(map[Channel]Notifier),
		logger:    slog.Default().With("component", "notify"),
	}
}

// FromConfig registers every channel cfg enables.
func FromConfig(cfg Config) *Dispatcher {
	d := NewDispatcher()
	if cfg.Webhook.URL != "" {
		d.Register(NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		d.Register(NewTelegramNotifier(cfg.Telegram))
	}
	return d
}

// Register adds n, replacing any notifier for the same channel.
func (d *Dispatcher) Register(n Notifier) {
	d.notifiers[n.Channel()] = n
}

// Channels lists registered channels in name order.
func (d *Dispatcher) Channels() []Channel {
	out := make([]Channel, 0, len(d.notifiers))
	for ch := range d.notifiers {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SendAll sends msg to every registered channel. One failing channel does
// not stop the others; all failures are joined in the returned error.
func (d *Dispatcher) SendAll(ctx context.Context, msg Message) error {
	var errs []error
	for _, ch := range d.Channels() {
		if err := d.notifiers[ch].Send(ctx, msg); err != nil {
			d.logger.Error("notification failed", "channel", ch, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch, err))
			continue
		}
		d.logger.Info("notification sent", "channel", ch, "title", msg.Title)
	}
	return errors.Join(errs...)
}

// StatusError is a non-2xx reply from a channel endpoint. 4xx replies are
// not retried.
type StatusError struct {
	Channel Channel
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Channel, e.Code)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Channel, e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }

// sender posts JSON payloads for one channel with retries.
type sender struct {
	channel Channel
	http    *http.Client
	policy  retry.Policy
}

func newSender(ch Channel) sender {
	return sender{
		channel: ch,
		http:    &http.Client{Timeout: defaultTimeout},
		policy:  retry.Policy{Retries: 3, Backoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second},
	}
}

func (s sender) postJSON(ctx context.Context, url string, headers map[string]string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := s.http.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", s.channel, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &StatusError{Channel: s.channel, Code: resp.StatusCode, Body: string(bytes.TrimSpace(b))}
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	})
}
