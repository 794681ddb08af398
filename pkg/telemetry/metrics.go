// SPDX-License-Identifier: Apache-2.0
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/campusdesk/pkg/errors"
)

// MeterName is the instrumentation scope of dispatcher metrics.
const MeterName = "campusdesk/dispatcher"

// Metrics holds the dispatcher instruments. A nil *Metrics records
// nothing, so callers never need to check.
type Metrics struct {
	turnCounter      metric.Int64Counter
	toolCallCounter  metric.Int64Counter
	denialCounter    metric.Int64Counter
	oracleFailures   metric.Int64Counter
	oracleLatencyMs  metric.Float64Histogram
	toolLatencyMs    metric.Float64Histogram
	breakerStateGauge metric.Int64Gauge
}

// NewMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	m := &Metrics{}
	var err error

	if m.turnCounter, err = meter.Int64Counter(
		"campusdesk.turns.total",
		metric.WithDescription("Conversation turns by role and final status"),
	); err != nil {
		return nil, err
	}
	if m.toolCallCounter, err = meter.Int64Counter(
		"campusdesk.tool_calls.total",
		metric.WithDescription("Tool calls by tool, status and error code"),
	); err != nil {
		return nil, err
	}
	if m.denialCounter, err = meter.Int64Counter(
		"campusdesk.tool_calls.denied",
		metric.WithDescription("Tool calls rejected as outside the role's tool set"),
	); err != nil {
		return nil, err
	}
	if m.oracleFailures, err = meter.Int64Counter(
		"campusdesk.oracle.failures",
		metric.WithDescription("Failed oracle calls by error code"),
	); err != nil {
		return nil, err
	}
	if m.oracleLatencyMs, err = meter.Float64Histogram(
		"campusdesk.oracle.latency_ms",
		metric.WithDescription("Oracle call latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.toolLatencyMs, err = meter.Float64Histogram(
		"campusdesk.tool_calls.latency_ms",
		metric.WithDescription("Tool handler latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.breakerStateGauge, err = meter.Int64Gauge(
		"campusdesk.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per component (0=open, 1=half-open, 2=closed)"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordTurn counts a finished turn.
func (m *Metrics) RecordTurn(ctx context.Context, role, status string) {
	if m == nil {
		return
	}
	m.turnCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("status", status),
	))
}

// RecordToolCall counts an executed tool call and its latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string, code errors.ErrorCode, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
		attribute.String("error.code", string(code)),
	)
	m.toolCallCounter.Add(ctx, 1, attrs)
	m.toolLatencyMs.Record(ctx, durationMs, metric.WithAttributes(attribute.String("tool", tool)))
}

// RecordDenial counts a tool call outside the role's set.
func (m *Metrics) RecordDenial(ctx context.Context, role, tool string) {
	if m == nil {
		return
	}
	m.denialCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", role),
		attribute.String("tool", tool),
	))
}

// RecordOracleCall records oracle latency and, when err is set, a failure.
func (m *Metrics) RecordOracleCall(ctx context.Context, durationMs float64, err error) {
	if m == nil {
		return
	}
	m.oracleLatencyMs.Record(ctx, durationMs)
	if err != nil {
		m.oracleFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("error.code", string(errors.CodeOf(err))),
		))
	}
}

// RecordCircuitBreakerState records the circuit breaker state (0=open, 1=half-open, 2=closed).
func (m *Metrics) RecordCircuitBreakerState(ctx context.Context, component string, state int64) {
	if m == nil {
		return
	}
	m.breakerStateGauge.Record(ctx, state, metric.WithAttributes(
		attribute.String("component", component),
	))
}
