package llm

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient("", Config{})
	if err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestNewOpenAIClientDefaultsModel(t *testing.T) {
	client, err := NewOpenAIClient("test-key", Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.config.Model != DefaultModel {
		t.Errorf("expected default model %s, got %s", DefaultModel, client.config.Model)
	}
}

func TestPrepareStructuredMessages(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "You extract entities."},
		{Role: RoleUser, Content: "Some episode text."},
	}

	schema := map[string]any{"entities": []string{}}
	prepared, err := prepareStructuredMessages(messages, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(prepared[1].Content, "JSON object") {
		t.Error("expected format instruction appended to last message")
	}
	if messages[1].Content != "Some episode text." {
		t.Error("original messages must not be modified")
	}

	if _, err := prepareStructuredMessages(nil, schema); err == nil {
		t.Error("expected error for empty messages")
	}
}

func TestClassifyOpenAIError(t *testing.T) {
	apiErr := &openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "rate limit reached for gpt-4o-mini",
	}
	classified := classifyOpenAIError(apiErr)
	if !IsRateLimitError(classified) {
		t.Errorf("expected 429 to classify as rate limit, got %v", classified)
	}

	other := classifyOpenAIError(errors.New("connection refused"))
	if IsRateLimitError(other) {
		t.Errorf("expected non-rate-limit classification, got %v", other)
	}
}

func TestCleanInput(t *testing.T) {
	input := "hello​world\nnext\tline"
	cleaned := cleanInput(input)
	if cleaned != "helloworld\nnext\tline" {
		t.Errorf("unexpected cleaned input: %q", cleaned)
	}
}
