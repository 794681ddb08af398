package core

import (
	"context"
	"time"
)

// EventType identifies a semantic event emitted while a turn runs.
type EventType string

const (
	EventTurnStarted    EventType = "turn.started"
	EventTurnCompleted  EventType = "turn.completed"
	EventTurnFailed     EventType = "turn.failed"
	EventOracleCalled   EventType = "oracle.called"
	EventToolDispatched EventType = "tool.dispatched"
	EventToolRejected   EventType = "tool.rejected"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	Role      Role
	RunID     string
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// EventEmitterFunc adapts a function to EventEmitter.
type EventEmitterFunc func(ctx context.Context, event Event)

// Emit implements EventEmitter.
func (f EventEmitterFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NewEvent builds a default event with timestamp.
func NewEvent(eventType EventType, role Role, runID string, payload map[string]any) Event {
	return Event{
		Type:      eventType,
		Role:      role,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
