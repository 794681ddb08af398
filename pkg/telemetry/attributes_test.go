// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestTurnAttributes(t *testing.T) {
	attrs := TurnAttributes("teacher", "turn-123", 25)

	expected := map[string]any{
		AttrTurnRole:      "teacher",
		AttrTurnRunID:     "turn-123",
		AttrTurnMaxRounds: 25,
	}

	assertAttributes(t, attrs, expected)
}

func TestToolCallAttributes(t *testing.T) {
	attrs := ToolCallAttributes("mark_attendance", "attendance", "call-1", 12.5, "failed", "AUTHORIZATION_DENIED")

	expected := map[string]any{
		AttrToolName:       "mark_attendance",
		AttrToolDomain:     "attendance",
		AttrToolCallID:     "call-1",
		AttrToolDurationMs: 12.5,
		AttrToolStatus:     "failed",
		AttrToolCode:       "AUTHORIZATION_DENIED",
	}

	assertAttributes(t, attrs, expected)
}

func TestToolCallAttributes_NoCode(t *testing.T) {
	attrs := ToolCallAttributes("list_events", "", "call-2", 1, "success", "")
	for _, attr := range attrs {
		if attr.Key == AttrToolCode || attr.Key == AttrToolDomain {
			t.Errorf("unexpected attribute %s", attr.Key)
		}
	}
}

func TestToolCallArgsResult_Truncation(t *testing.T) {
	longArgs := strings.Repeat("a", 600)
	longResult := strings.Repeat("b", 700)

	attrs := ToolCallArgsResult(longArgs, longResult, 500)

	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if val := attr.Value.AsString(); len(val) != 503 {
			t.Errorf("attribute %s not truncated: len=%d", attr.Key, len(val))
		}
	}
}

func TestToolsetAttributes(t *testing.T) {
	attrs := ToolsetAttributes([]string{"list_events", "get_event"})

	assertAttributes(t, attrs, map[string]any{AttrToolsCount: 2})

	for _, attr := range attrs {
		if attr.Key == AttrToolsNames {
			names := attr.Value.AsStringSlice()
			if len(names) != 2 || names[0] != "list_events" {
				t.Errorf("unexpected names %v", names)
			}
		}
	}

	if attrs := ToolsetAttributes(nil); len(attrs) != 1 {
		t.Errorf("empty toolset should only carry the count")
	}
}

func TestLLMAttributes(t *testing.T) {
	attrs := LLMAttributes("llama-3.3-70b-versatile", 4, 2)

	expected := map[string]any{
		AttrLLMModel:    "llama-3.3-70b-versatile",
		AttrLLMMessages: 4,
		AttrTurnRound:   2,
	}

	assertAttributes(t, attrs, expected)
}

func TestLLMUsageAttributes(t *testing.T) {
	attrs := LLMUsageAttributes(100, 50, 2, 1234.5)

	expected := map[string]any{
		AttrLLMTokensInput:  100,
		AttrLLMTokensOutput: 50,
		AttrLLMTokensTotal:  150,
		AttrLLMToolCalls:    2,
		AttrLLMDurationMs:   1234.5,
	}

	assertAttributes(t, attrs, expected)

	if attrs := LLMUsageAttributes(0, 0, 0, 0); len(attrs) != 0 {
		t.Errorf("expected no attributes, got %d", len(attrs))
	}
}

func TestPolicyAttributes(t *testing.T) {
	attrs := PolicyAttributes(false, "not in role tool set")

	expected := map[string]any{
		AttrPolicyAllowed: false,
		AttrPolicyReason:  "not in role tool set",
	}

	assertAttributes(t, attrs, expected)
}

// assertAttributes checks that expected key-value pairs exist in attrs
func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
