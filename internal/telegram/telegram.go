package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/notify"
	"github.com/deusflow/feedwatch/internal/retry"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	maxMessageLen  = 4096
)

// Notifier sends each payload as one HTML message to a chat or channel.
type Notifier struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	retry   retry.Config
	logger  *slog.Logger
}

var _ notify.Channel = (*Notifier)(nil)

func New(token, chatID string, log *slog.Logger) *Notifier {
	return &Notifier{
		token:   token,
		chatID:  chatID,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry.Config{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
		logger:  logger.Component(log, "telegram"),
	}
}

// Send sends message to Telegram chat/channel with retry logic
func (n *Notifier) Send(ctx context.Context, p notify.Payload) error {
	text := FormatMessage(p)

	attempt := 0
	err := retry.Do(ctx, n.retry, func(ctx context.Context) error {
		attempt++
		err := n.sendMessageOnce(ctx, text)
		if err != nil {
			n.logger.Warn("error send to Telegram", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return err
	}
	n.logger.Debug("message sent to Telegram", "attempt", attempt, "source", p.SourceLabel)
	return nil
}

func (n *Notifier) sendMessageOnce(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token)

	payload := map[string]interface{}{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			n.logger.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: status %d", resp.StatusCode)
	}
	return nil
}

// FormatMessage renders a payload as Telegram HTML. Items that would push
// the message past Telegram's length limit are summarized in a final line.
func FormatMessage(p notify.Payload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>【%s】 %d 条更新</b>\n", html.EscapeString(p.SourceLabel), p.Count)

	for i, it := range p.Items {
		var entry strings.Builder
		fmt.Fprintf(&entry, "\n%d. <a href=\"%s\">%s</a>\n", i+1, html.EscapeString(it.Link), html.EscapeString(it.TitleDisplay))
		if it.TitleOriginal != it.TitleDisplay {
			fmt.Fprintf(&entry, "<i>%s</i>\n", html.EscapeString(it.TitleOriginal))
		}
		fmt.Fprintf(&entry, "🕒 %s\n", it.DisplayTime)

		rest := fmt.Sprintf("\n…还有 %d 条", len(p.Items)-i)
		if utf8.RuneCountInString(b.String())+utf8.RuneCountInString(entry.String())+utf8.RuneCountInString(rest) > maxMessageLen {
			b.WriteString(rest)
			break
		}
		b.WriteString(entry.String())
	}
	return b.String()
}
