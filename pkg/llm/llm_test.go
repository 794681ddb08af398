package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/core"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/resilience"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
	if mock.Calls() != 1 {
		t.Errorf("Expected 1 call, got %d", mock.Calls())
	}
}

func quickRetry(attempts int) resilience.RetryConfig {
	return resilience.DefaultRetryConfig().WithMaxAttempts(attempts).WithInitialDelay(time.Millisecond)
}

func TestGuardRetriesRecoverableFailures(t *testing.T) {
	calls := 0
	p := Guard(ProviderFunc(func(context.Context, ChatRequest) (*ChatResponse, error) {
		calls++
		if calls < 2 {
			return nil, kerrors.New(kerrors.CodeOracleUnavailable, "503", nil).WithRecoverable(true)
		}
		return &ChatResponse{Content: "ok"}, nil
	}), quickRetry(3), nil, 0)

	resp, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, calls)
}

func TestGuardStopsOnPermanentFailure(t *testing.T) {
	calls := 0
	p := Guard(ProviderFunc(func(context.Context, ChatRequest) (*ChatResponse, error) {
		calls++
		return nil, kerrors.New(kerrors.CodeUnauthenticated, "bad key", nil)
	}), quickRetry(3), nil, 0)

	_, err := p.Chat(context.Background(), ChatRequest{})
	assert.Equal(t, kerrors.CodeUnauthenticated, kerrors.CodeOf(err))
	assert.Equal(t, 1, calls)
}

func TestGuardTimeoutAndBreaker(t *testing.T) {
	slow := ProviderFunc(func(ctx context.Context, _ ChatRequest) (*ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	p := Guard(slow, quickRetry(1), breaker, 5*time.Millisecond)

	_, err := p.Chat(context.Background(), ChatRequest{})
	assert.Equal(t, kerrors.CodeTimeout, kerrors.CodeOf(err))
	assert.Equal(t, resilience.StateOpen, breaker.State())
	assert.Equal(t, core.HealthUnhealthy, p.Check(context.Background()).Status)

	_, err = p.Chat(context.Background(), ChatRequest{})
	assert.Equal(t, kerrors.CodeOracleUnavailable, kerrors.CodeOf(err))
}

func TestOllamaToolCalls(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"","tool_calls":[
			{"function":{"name":"get_event","arguments":{"event_id":3}}}]},
			"done":true,"prompt_eval_count":7,"eval_count":2}`))
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "llama3.1")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "show event 3"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{Function: FunctionCall{Name: "list_events", Arguments: `{}`}}}},
			{Role: RoleTool, Name: "list_events", Content: `{"status":"success"}`},
		},
		Tools: []Tool{NewFunctionTool("get_event", "Show one event", map[string]any{"type": "object"})},
	})
	require.NoError(t, err)

	assert.Equal(t, "llama3.1", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, "list_events", got.Messages[2].ToolName)
	assert.JSONEq(t, `{}`, string(got.Messages[1].ToolCalls[0].Function.Arguments))

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "get_event", resp.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"event_id":3}`, resp.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "m").Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, kerrors.CodeOracleUnavailable, kerrors.CodeOf(err))
	assert.True(t, kerrors.As(err).Recoverable)
}

func TestOpenAIChat(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"list_events","arguments":"{}"}}]}}],
			"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`))
	}))
	defer srv.Close()

	p := NewOpenAI(WithOpenAIBaseURL(srv.URL), WithOpenAIKey("test-key"), WithOpenAIModel("m"))
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleSystem, Content: "ctx"}, {Role: RoleUser, Content: "events?"}},
		Tools:    []Tool{NewFunctionTool("list_events", "List all events.", map[string]any{"type": "object", "properties": map[string]any{}})},
	})
	require.NoError(t, err)

	assert.Equal(t, "m", body["model"])
	assert.Len(t, body["messages"], 2)
	assert.Len(t, body["tools"], 1)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "list_events", resp.ToolCalls[0].Function.Name)
	assert.Equal(t, 8, resp.Usage.TotalTokens)
}

func TestOpenAIErrorsAreClassified(t *testing.T) {
	tests := []struct {
		status      int
		code        kerrors.ErrorCode
		recoverable bool
	}{
		{http.StatusUnauthorized, kerrors.CodeUnauthenticated, false},
		{http.StatusTooManyRequests, kerrors.CodeOracleUnavailable, true},
		{http.StatusBadGateway, kerrors.CodeOracleUnavailable, true},
		{http.StatusBadRequest, kerrors.CodeOracleUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			}))
			defer srv.Close()

			_, err := NewOpenAI(WithOpenAIBaseURL(srv.URL), WithOpenAIKey("k")).Chat(context.Background(), ChatRequest{
				Messages: []Message{{Role: RoleUser, Content: "hi"}},
			})
			require.Error(t, err)
			var ke *kerrors.Error
			require.True(t, errors.As(err, &ke))
			assert.Equal(t, tt.code, ke.Code)
			assert.Equal(t, tt.recoverable, ke.Recoverable)
		})
	}
}

func TestFactory(t *testing.T) {
	p, err := New(config.LLMConfig{Provider: "mock"})
	require.NoError(t, err)
	resp, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, MockReply, resp.Content)

	p, err = New(config.LLMConfig{Provider: "ollama", Model: "m", MaxRetries: 1})
	require.NoError(t, err)
	assert.IsType(t, &GuardedProvider{}, p)

	_, err = New(config.LLMConfig{Provider: "anthropic"})
	assert.Error(t, err)
}
