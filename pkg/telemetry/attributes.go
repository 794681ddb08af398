// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires slog, OpenTelemetry traces and metrics, and the
// span attributes used by the dispatcher.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys. LLM keys follow the gen_ai conventions.
const (
	// Turn attributes
	AttrTurnRole      = "campusdesk.turn.role"
	AttrTurnRunID     = "campusdesk.turn.run_id"
	AttrTurnRound     = "campusdesk.turn.round"
	AttrTurnMaxRounds = "campusdesk.turn.max_rounds"
	AttrTurnStatus    = "campusdesk.turn.status"

	// Tool attributes
	AttrToolName       = "campusdesk.tool.name"
	AttrToolDomain     = "campusdesk.tool.domain"
	AttrToolCallID     = "campusdesk.tool.call_id"
	AttrToolArgs       = "campusdesk.tool.arguments"
	AttrToolResult     = "campusdesk.tool.result"
	AttrToolDurationMs = "campusdesk.tool.duration_ms"
	AttrToolStatus     = "campusdesk.tool.status"
	AttrToolCode       = "campusdesk.tool.code"

	// Tool set attributes
	AttrToolsCount = "campusdesk.tools.count"
	AttrToolsNames = "campusdesk.tools.names"

	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"
	AttrLLMToolCalls    = "gen_ai.tool_calls"

	AttrPolicyAllowed = "campusdesk.policy.allowed"
	AttrPolicyReason  = "campusdesk.policy.reason"
)

// TurnAttributes returns common attributes for turn spans.
func TurnAttributes(role, runID string, maxRounds int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrTurnRole, role),
		attribute.String(AttrTurnRunID, runID),
	}
	if maxRounds > 0 {
		attrs = append(attrs, attribute.Int(AttrTurnMaxRounds, maxRounds))
	}
	return attrs
}

// ToolCallAttributes returns attributes for a tool call span.
func ToolCallAttributes(name, domain, callID string, durationMs float64, status, code string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrToolName, name),
		attribute.String(AttrToolCallID, callID),
		attribute.Float64(AttrToolDurationMs, durationMs),
		attribute.String(AttrToolStatus, status),
	}
	if domain != "" {
		attrs = append(attrs, attribute.String(AttrToolDomain, domain))
	}
	if code != "" {
		attrs = append(attrs, attribute.String(AttrToolCode, code))
	}
	return attrs
}

// ToolCallArgsResult returns attributes with tool arguments and result (truncated for safety).
func ToolCallArgsResult(args, result string, maxLen int) []attribute.KeyValue {
	if maxLen <= 0 {
		maxLen = 500
	}
	attrs := []attribute.KeyValue{}
	if args != "" {
		attrs = append(attrs, attribute.String(AttrToolArgs, truncate(args, maxLen)))
	}
	if result != "" {
		attrs = append(attrs, attribute.String(AttrToolResult, truncate(result, maxLen)))
	}
	return attrs
}

// ToolsetAttributes returns attributes describing the offered tools.
func ToolsetAttributes(names []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrToolsCount, len(names)),
	}
	if len(names) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrToolsNames, names))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model string, msgCount, round int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrLLMMessages, msgCount),
		attribute.Int(AttrTurnRound, round),
	}
	if model != "" {
		attrs = append(attrs, attribute.String(AttrLLMModel, model))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens, toolCalls int, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if toolCalls > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMToolCalls, toolCalls))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	return attrs
}

// PolicyAttributes returns attributes for a capability decision.
func PolicyAttributes(allowed bool, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrPolicyAllowed, allowed),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String(AttrPolicyReason, reason))
	}
	return attrs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
