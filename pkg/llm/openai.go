package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Defaults matching the hosted API.
const (
	DefaultModel = "gpt-4o-mini"
)

// OpenAIClient implements Client for OpenAI and OpenAI-compatible servers.
type OpenAIClient struct {
	client *openai.Client
	config Config
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string, config Config) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Chat implements the Client interface.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	req := c.buildRequest(messages)

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from API")
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// ChatWithStructuredOutput implements the Client interface. The schema is
// serialized and appended to the final message as a format instruction.
func (c *OpenAIClient) ChatWithStructuredOutput(ctx context.Context, messages []Message, schema any) (*Response, error) {
	prepared, err := prepareStructuredMessages(messages, schema)
	if err != nil {
		return nil, err
	}

	req := c.buildRequest(prepared)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from API")
	}

	return &Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// Close implements the Client interface.
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) buildRequest(messages []Message) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		openaiMessages = append(openaiMessages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: cleanInput(m.Content),
		})
	}

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    openaiMessages,
		Temperature: c.config.Temperature,
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}
	return req
}

// prepareStructuredMessages appends a JSON format instruction derived from
// schema to the last message. The originals are not modified.
func prepareStructuredMessages(messages []Message, schema any) ([]Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message is required")
	}

	prepared := make([]Message, len(messages))
	copy(prepared, messages)

	if schema != nil {
		schemaBytes, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize response schema: %w", err)
		}
		last := len(prepared) - 1
		prepared[last].Content += fmt.Sprintf(
			"\n\nRespond with a JSON object in the following format:\n\n%s",
			string(schemaBytes),
		)
	}

	return prepared, nil
}

// classifyOpenAIError converts provider errors into the package error
// taxonomy. HTTP 429 and rate-limit messages become RateLimitError.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(apiErr.Message)
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return NewRateLimitError(err.Error())
	}

	return fmt.Errorf("openai completion failed: %w", err)
}

// cleanInput strips zero-width and control characters that confuse the API.
func cleanInput(input string) string {
	zeroWidthChars := []string{"​", "‌", "‍", "\uFEFF", "⁠"}
	cleaned := input
	for _, char := range zeroWidthChars {
		cleaned = strings.ReplaceAll(cleaned, char, "")
	}

	var builder strings.Builder
	for _, r := range cleaned {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
