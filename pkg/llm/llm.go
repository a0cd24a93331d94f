// Package llm provides the language-model client used for entity and fact
// extraction during episode ingestion. The OpenAI implementation maps
// provider throttling responses to RateLimitError so callers can distinguish
// retryable failures.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role
	Content string
}

// Response holds a completed chat response.
type Response struct {
	Content      string
	Model        string
	FinishReason string
}

// Client is the interface for LLM providers.
type Client interface {
	// Chat sends messages to the model and returns the response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// ChatWithStructuredOutput sends messages with a JSON schema hint
	// appended to the final message and returns the raw response.
	ChatWithStructuredOutput(ctx context.Context, messages []Message, schema any) (*Response, error)

	// Close releases resources held by the client.
	Close() error
}

// Config holds configuration for LLM clients.
type Config struct {
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}
