// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides a scripted reasoning oracle and event capture
// for dispatcher tests.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jllopis/campusdesk/pkg/llm"
)

// ScenarioProvider is a scripted oracle. It replays queued responses in
// order and captures every request it receives.
type ScenarioProvider struct {
	mu        sync.Mutex
	script    []ScriptedResponse
	next      int
	requests  []llm.ChatRequest
	exhausted error
}

// ScriptedResponse is one oracle turn: a final text, a batch of tool
// calls, or a failure.
type ScriptedResponse struct {
	Content   string
	ToolCalls []llm.ToolCall
	Error     error
	Usage     llm.Usage
}

// NewScenarioProvider creates a new scenario provider.
func NewScenarioProvider() *ScenarioProvider {
	return &ScenarioProvider{}
}

// AddResponse queues a final text answer.
func (p *ScenarioProvider) AddResponse(content string) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Content: content})
}

// AddToolCallResponse queues a turn requesting tool calls.
func (p *ScenarioProvider) AddToolCallResponse(toolCalls ...llm.ToolCall) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{ToolCalls: toolCalls})
}

// AddErrorResponse queues an error.
func (p *ScenarioProvider) AddErrorResponse(err error) *ScenarioProvider {
	return p.AddScriptedResponse(ScriptedResponse{Error: err})
}

// AddScriptedResponse adds a fully configured response.
func (p *ScenarioProvider) AddScriptedResponse(resp ScriptedResponse) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script = append(p.script, resp)
	return p
}

// WithDefaultError makes every call past the end of the script fail
// with err.
func (p *ScenarioProvider) WithDefaultError(err error) *ScenarioProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exhausted = err
	return p
}

// Chat implements llm.Provider.
func (p *ScenarioProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// The dispatcher keeps appending to its history slice.
	req.Messages = append([]llm.Message(nil), req.Messages...)
	p.requests = append(p.requests, req)

	if p.next >= len(p.script) {
		if p.exhausted != nil {
			return nil, p.exhausted
		}
		return nil, fmt.Errorf("oracle script exhausted after %d turns", len(p.script))
	}

	resp := p.script[p.next]
	p.next++
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &llm.ChatResponse{
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
		Usage:     resp.Usage,
	}, nil
}

// Requests returns all captured requests.
func (p *ScenarioProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.requests...)
}

// LastRequest returns the most recent request.
func (p *ScenarioProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// CallCount returns the number of Chat calls made.
func (p *ScenarioProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// ToolNames returns the names of the tools offered in req.
func ToolNames(req llm.ChatRequest) []string {
	names := make([]string, len(req.Tools))
	for i, t := range req.Tools {
		names[i] = t.Function.Name
	}
	return names
}

// ToolCallBuilder assembles an oracle tool call.
type ToolCallBuilder struct {
	id   string
	name string
	args map[string]any
	raw  *string
}

// NewToolCall starts a call to the named tool with no arguments.
func NewToolCall(name string) *ToolCallBuilder {
	return &ToolCallBuilder{name: name, args: map[string]any{}}
}

// WithID sets the call id. Without one the dispatcher assigns its own.
func (b *ToolCallBuilder) WithID(id string) *ToolCallBuilder {
	b.id = id
	return b
}

// WithArg adds an argument to the tool call.
func (b *ToolCallBuilder) WithArg(key string, value any) *ToolCallBuilder {
	b.args[key] = value
	return b
}

// WithRawArgs sets the argument text verbatim, valid JSON or not.
func (b *ToolCallBuilder) WithRawArgs(raw string) *ToolCallBuilder {
	b.raw = &raw
	return b
}

// Build returns the call with its arguments encoded as JSON.
func (b *ToolCallBuilder) Build() llm.ToolCall {
	var args string
	switch {
	case b.raw != nil:
		args = *b.raw
	default:
		encoded, _ := json.Marshal(b.args)
		args = string(encoded)
	}
	return llm.ToolCall{
		ID:   b.id,
		Type: llm.ToolTypeFunction,
		Function: llm.FunctionCall{
			Name:      b.name,
			Arguments: args,
		},
	}
}
