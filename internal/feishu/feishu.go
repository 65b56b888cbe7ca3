// Package feishu posts notification payloads to a Feishu (Lark) custom bot
// webhook as interactive cards.
package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/notify"
	"github.com/deusflow/feedwatch/internal/retry"
)

type Client struct {
	Webhook string
	Keyword string // bot security keyword, must appear in every message
	HTTP    *http.Client
	Retry   retry.Config
	Logger  *slog.Logger
}

var _ notify.Channel = (*Client)(nil)

func New(webhook, keyword string, log *slog.Logger) *Client {
	return &Client{
		Webhook: webhook,
		Keyword: keyword,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Retry:   retry.Config{MaxAttempts: 2, Delay: time.Second, Backoff: true},
		Logger:  logger.Component(log, "feishu"),
	}
}

type message struct {
	MsgType string `json:"msg_type"`
	Card    card   `json:"card"`
}

type card struct {
	Config   cardConfig `json:"config"`
	Header   cardHeader `json:"header"`
	Elements []element  `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardHeader struct {
	Template string    `json:"template"`
	Title    plainText `json:"title"`
}

type plainText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// element covers the div, hr and note card blocks.
type element struct {
	Tag      string      `json:"tag"`
	Text     *plainText  `json:"text,omitempty"`
	Elements []plainText `json:"elements,omitempty"`
}

type response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func buildCard(p notify.Payload, keyword string) message {
	elements := make([]element, 0, 2*len(p.Items)+1)
	for i, it := range p.Items {
		if i > 0 {
			elements = append(elements, element{Tag: "hr"})
		}
		content := fmt.Sprintf("**[%s](%s)**\n**原文：** %s\n**时间：** %s",
			escapeMD(it.TitleDisplay), it.Link, it.TitleOriginal, it.DisplayTime)
		elements = append(elements, element{
			Tag:  "div",
			Text: &plainText{Tag: "lark_md", Content: content},
		})
	}
	elements = append(elements, element{
		Tag:      "note",
		Elements: []plainText{{Tag: "plain_text", Content: fmt.Sprintf("来自：%s 机器人", keyword)}},
	})

	return message{
		MsgType: "interactive",
		Card: card{
			Config: cardConfig{WideScreenMode: true},
			Header: cardHeader{
				Template: "orange",
				Title:    plainText{Tag: "plain_text", Content: fmt.Sprintf("【%s】 %d 条更新", p.SourceLabel, p.Count)},
			},
			Elements: elements,
		},
	}
}

// escapeMD keeps titles from breaking the link markup.
func escapeMD(s string) string {
	return strings.NewReplacer("[", "［", "]", "］").Replace(s)
}

func (c *Client) Send(ctx context.Context, p notify.Payload) error {
	body, err := json.Marshal(buildCard(p, c.Keyword))
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	attempt := 0
	return retry.Do(ctx, c.Retry, func(ctx context.Context) error {
		attempt++
		err := c.post(ctx, body)
		if err != nil && c.Logger != nil {
			c.Logger.Warn("feishu send failed", "attempt", attempt, "source", p.SourceLabel, "error", err)
		}
		return err
	})
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feishu API error: status %d", resp.StatusCode)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if r.Code != 0 {
		return fmt.Errorf("feishu API error: code %d: %s", r.Code, r.Msg)
	}
	return nil
}
