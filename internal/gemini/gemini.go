package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/feedwatch/internal/ratelimit"
	"github.com/deusflow/feedwatch/internal/translate"
)

const maxInputRunes = 500

// Client translates headlines with Gemini. It is the fallback when the free
// Google endpoint fails.
type Client struct {
	client *genai.Client
	model  string
	budget *ratelimit.Budget
}

var _ translate.Translator = (*Client)(nil)

func NewClient(ctx context.Context, apiKey, model string, budget *ratelimit.Budget) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, model: model, budget: budget}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) Translate(ctx context.Context, text, target string) (string, error) {
	if c.budget != nil {
		if err := c.budget.Take(); err != nil {
			return "", err
		}
	}
	if c.client == nil {
		return "", errors.New("gemini client not initialized")
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx, genai.Text(buildPrompt(text, target)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	out, err := responseText(resp)
	if err != nil {
		return "", err
	}
	out = translate.SanitizeAIText(out)
	if out == "" {
		return "", errors.New("empty translation from Gemini")
	}
	return out, nil
}

func buildPrompt(text, target string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxInputRunes {
		text = string([]rune(text)[:maxInputRunes])
	}

	return fmt.Sprintf(`Translate the following financial news headline into %s.
Keep company names, tickers and numbers unchanged.
Reply with the translated headline only, without quotes or comments.

Headline:
%s`, languageName(target), text)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no text in Gemini response")
	}
	return b.String(), nil
}

func languageName(code string) string {
	switch strings.ToLower(code) {
	case "zh-cn", "zh", "zh-hans":
		return "Simplified Chinese"
	case "zh-tw", "zh-hant":
		return "Traditional Chinese"
	case "en":
		return "English"
	case "ja":
		return "Japanese"
	case "uk":
		return "Ukrainian"
	default:
		return code
	}
}
