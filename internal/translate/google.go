package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const googleEndpoint = "https://translate.googleapis.com/translate_a/single"

// Google uses the free public Google Translate endpoint.
type Google struct {
	BaseURL string
	Source  string // "auto" detects the source language
	Client  *http.Client
}

var _ Translator = (*Google)(nil)

func NewGoogle(timeout time.Duration) *Google {
	return &Google{
		BaseURL: googleEndpoint,
		Source:  "auto",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (g *Google) Translate(ctx context.Context, text, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty input")
	}

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", g.Source)
	params.Set("tl", target)
	params.Set("dt", "t") // return translations
	params.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google Translate API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	translation, err := parseGoogleTranslateResponse(body)
	if err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	return translation, nil
}

// parseGoogleTranslateResponse joins the translated segments of a gtx
// response: [[["译文","source",...],...],...].
func parseGoogleTranslateResponse(body []byte) (string, error) {
	var response []interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	if len(response) == 0 {
		return "", errors.New("empty response from Google Translate")
	}

	translations, ok := response[0].([]interface{})
	if !ok {
		return "", errors.New("unexpected response format")
	}

	var result strings.Builder
	for _, translation := range translations {
		if translationArray, ok := translation.([]interface{}); ok && len(translationArray) > 0 {
			if translatedText, ok := translationArray[0].(string); ok {
				result.WriteString(translatedText)
			}
		}
	}

	if result.Len() == 0 {
		return "", errors.New("no translated segments")
	}
	return result.String(), nil
}
