package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/deusflow/feedwatch/internal/ratelimit"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("美联储"), genai.Text("按兵不动")}},
		}},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatalf("responseText: %v", err)
	}
	if got != "美联储按兵不动" {
		t.Errorf("got %q", got)
	}

	if _, err := responseText(&genai.GenerateContentResponse{}); err == nil {
		t.Errorf("expected error for empty response")
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("  Fed   holds\nrates ", "zh-CN")
	if !strings.Contains(p, "Simplified Chinese") {
		t.Errorf("prompt does not name the target language: %q", p)
	}
	if !strings.Contains(p, "Fed holds rates") {
		t.Errorf("prompt does not carry the normalized headline: %q", p)
	}

	long := strings.Repeat("x", maxInputRunes+50)
	if strings.Contains(buildPrompt(long, "en"), long) {
		t.Errorf("long headline was not truncated")
	}
}

func TestTranslateRespectsBudget(t *testing.T) {
	budget := ratelimit.NewBudget("gemini", 1)
	_ = budget.Take()

	c := &Client{model: "gemini-1.5-flash", budget: budget}
	_, err := c.Translate(context.Background(), "Fed holds rates", "zh-CN")
	if !errors.Is(err, ratelimit.ErrExhausted) {
		t.Fatalf("expected budget error, got %v", err)
	}
}
