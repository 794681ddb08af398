// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	kerrors "github.com/jllopis/campusdesk/pkg/errors"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, Groq, vLLM).
type OpenAIProvider struct {
	client openai.Client
	model  string
}

// OpenAIOption configures the OpenAIProvider.
type OpenAIOption func(*openaiSettings)

type openaiSettings struct {
	model string
	opts  []option.RequestOption
}

// WithOpenAIModel sets the default model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(s *openaiSettings) { s.model = model }
}

// WithOpenAIBaseURL sets a custom base URL.
func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(s *openaiSettings) {
		if url != "" {
			s.opts = append(s.opts, option.WithBaseURL(url))
		}
	}
}

// WithOpenAIKey sets the API key.
func WithOpenAIKey(apiKey string) OpenAIOption {
	return func(s *openaiSettings) {
		if apiKey != "" {
			s.opts = append(s.opts, option.WithAPIKey(apiKey))
		}
	}
}

// WithOpenAIHTTPClient replaces the HTTP client.
func WithOpenAIHTTPClient(c *http.Client) OpenAIOption {
	return func(s *openaiSettings) { s.opts = append(s.opts, option.WithHTTPClient(c)) }
}

// NewOpenAI creates a provider. The SDK's own retries are disabled; callers
// wrap the provider with Guard instead.
func NewOpenAI(opts ...OpenAIOption) *OpenAIProvider {
	s := &openaiSettings{model: "gpt-4o-mini"}
	for _, opt := range opts {
		opt(s)
	}
	reqOpts := append([]option.RequestOption{option.WithMaxRetries(0)}, s.opts...)
	return &OpenAIProvider{
		client: openai.NewClient(reqOpts...),
		model:  s.model,
	}
}

// Chat implements Provider.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, convertMessage(msg))
	}

	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, convertTool(tool))
		}
		params.Tools = tools
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	return convertResponse(completion), nil
}

// classifyOpenAIError marks rate limits and server errors as recoverable.
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		recoverable := apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
		code := kerrors.CodeOracleUnavailable
		if apiErr.StatusCode == http.StatusUnauthorized {
			code = kerrors.CodeUnauthenticated
		}
		return kerrors.New(code, fmt.Sprintf("chat completion failed with status %d", apiErr.StatusCode), err).
			WithContext("status", apiErr.StatusCode).
			WithRecoverable(recoverable)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return kerrors.New(kerrors.CodeOracleUnavailable, "chat completion failed", err).WithRecoverable(true)
}

func convertMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	switch msg.Role {
	case RoleSystem:
		return openai.SystemMessage(msg.Content)
	case RoleUser:
		return openai.UserMessage(msg.Content)
	case RoleAssistant:
		if len(msg.ToolCalls) > 0 {
			toolCalls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			assistantMsg := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
			if msg.Content != "" {
				assistantMsg.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(msg.Content),
				}
			}
			return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistantMsg}
		}
		return openai.AssistantMessage(msg.Content)
	case RoleTool:
		return openai.ToolMessage(msg.Content, msg.ToolCallID)
	default:
		return openai.UserMessage(msg.Content)
	}
}

func convertTool(tool Tool) openai.ChatCompletionToolParam {
	paramsJSON, _ := json.Marshal(tool.Function.Parameters)
	var params openai.FunctionParameters
	_ = json.Unmarshal(paramsJSON, &params)

	return openai.ChatCompletionToolParam{
		Type: "function",
		Function: openai.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: openai.String(tool.Function.Description),
			Parameters:  params,
		},
	}
}

func convertResponse(completion *openai.ChatCompletion) *ChatResponse {
	resp := &ChatResponse{
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) == 0 {
		return resp
	}
	choice := completion.Choices[0]
	resp.Content = choice.Message.Content
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:   tc.ID,
			Type: ToolTypeFunction,
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return resp
}

var _ Provider = (*OpenAIProvider)(nil)
