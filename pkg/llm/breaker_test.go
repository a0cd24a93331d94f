package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubClient struct {
	calls int
	err   error
}

func (s *stubClient) Chat(ctx context.Context, messages []Message) (*Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Content: "ok"}, nil
}

func (s *stubClient) ChatWithStructuredOutput(ctx context.Context, messages []Message, schema any) (*Response, error) {
	return s.Chat(ctx, messages)
}

func (s *stubClient) Close() error { return nil }

func TestBreakerClientPassesThrough(t *testing.T) {
	stub := &stubClient{}
	breaker := NewBreakerClient(stub, DefaultBreakerConfig(), nil)

	resp, err := breaker.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("unexpected content: %s", resp.Content)
	}
}

func TestBreakerClientOpensAfterFailures(t *testing.T) {
	stub := &stubClient{err: errors.New("boom")}
	cfg := BreakerConfig{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		ReadyToTripRatio: 0.5,
	}
	breaker := NewBreakerClient(stub, cfg, nil)

	for i := 0; i < 5; i++ {
		breaker.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	}

	callsBefore := stub.calls
	_, err := breaker.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error from open breaker")
	}
	if stub.calls != callsBefore {
		t.Error("expected open breaker to short-circuit the underlying client")
	}
}
