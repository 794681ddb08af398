package llm

import (
	"context"
	"sync/atomic"
)

// MockProvider never requests tools. It answers every turn with Response,
// or fails with Err, and backs the "mock" provider setting.
type MockProvider struct {
	Response string
	Err      error

	calls atomic.Int64
}

func (m *MockProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	m.calls.Add(1)
	if m.Err != nil {
		return nil, m.Err
	}
	prompt := 0
	for _, msg := range req.Messages {
		prompt += len(msg.Content) / 4
	}
	completion := len(m.Response) / 4
	return &ChatResponse{
		Content: m.Response,
		Usage: Usage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

// Calls reports how many turns the mock has answered.
func (m *MockProvider) Calls() int { return int(m.calls.Load()) }
