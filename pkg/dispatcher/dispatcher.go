// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatcher turns a free-text request and an authenticated role
// into an authorized sequence of tool calls driven by the reasoning oracle.
//
// A turn moves through INIT, REASON, then alternates DISPATCH_TOOLS and
// REASON until the oracle answers without tool calls. Tool calls are only
// looked up in the role's tool set; sibling calls run concurrently and
// their results are appended in request order before the next REASON.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jllopis/campusdesk/pkg/audit"
	"github.com/jllopis/campusdesk/pkg/core"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/governance"
	"github.com/jllopis/campusdesk/pkg/llm"
	"github.com/jllopis/campusdesk/pkg/telemetry"
	"github.com/jllopis/campusdesk/pkg/tools"
)

// Fixed user-facing texts.
const (
	FallbackText    = "I couldn't process your request."
	UnavailableText = "The assistant is unavailable right now. Please try again later."
	MaxRoundsText   = "I couldn't finish your request in the allowed number of steps. Please try a simpler request."
	InvalidText     = "Your session could not be verified."
	EmptyText       = "Please enter a message."
)

const (
	DefaultMaxRounds   = 25
	DefaultMaxParallel = 4
)

// Status is the machine-checkable outcome of a turn.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// TurnRequest is one inbound request. When Claims is set the session is
// built from it and the other identity fields are ignored.
type TurnRequest struct {
	Role        core.Role
	IdentityID  int64
	DisplayName string
	Claims      *core.Claims
	Message     string
}

// TurnResponse is the reply to a TurnRequest. Code is set on failed
// turns only.
type TurnResponse struct {
	Text   string            `json:"message"`
	Status Status            `json:"status"`
	Role   core.Role         `json:"role"`
	RunID  string            `json:"run_id,omitempty"`
	Code   kerrors.ErrorCode `json:"code,omitempty"`
}

// Dispatcher drives conversations. It is safe for concurrent use; every
// turn owns its own Conversation.
type Dispatcher struct {
	oracle      llm.Provider
	caps        *governance.CapabilityMap
	prompts     Prompts
	model       string
	temperature float64
	maxRounds   int
	maxParallel int
	emitter     core.EventEmitter
	audit       audit.Store
	redactor    audit.Redactor
	metrics     *telemetry.Metrics
	log         *slog.Logger
	tracer      trace.Tracer

	offered map[core.Role][]llm.Tool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithModel sets the model name sent with every oracle request.
func WithModel(model string) Option {
	return func(d *Dispatcher) { d.model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(d *Dispatcher) { d.temperature = t }
}

// WithMaxRounds bounds the oracle calls of one turn.
func WithMaxRounds(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxRounds = n
		}
	}
}

// WithMaxParallel bounds concurrently running sibling tool calls.
func WithMaxParallel(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxParallel = n
		}
	}
}

// WithEmitter sets the semantic event sink.
func WithEmitter(e core.EventEmitter) Option {
	return func(d *Dispatcher) {
		if e != nil {
			d.emitter = e
		}
	}
}

// WithAudit records every tool call outcome in s.
func WithAudit(s audit.Store) Option {
	return func(d *Dispatcher) { d.audit = s }
}

// WithRedactor scrubs tool arguments and messages before they reach the
// audit store or span attributes.
func WithRedactor(r audit.Redactor) Option {
	return func(d *Dispatcher) { d.redactor = r }
}

// WithMetrics records turn, tool and oracle metrics.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithPrompts replaces the role prompts.
func WithPrompts(p Prompts) Option {
	return func(d *Dispatcher) {
		if p != nil {
			d.prompts = p
		}
	}
}

// New builds a dispatcher over oracle and the capability map.
func New(oracle llm.Provider, caps *governance.CapabilityMap, opts ...Option) (*Dispatcher, error) {
	if oracle == nil {
		return nil, fmt.Errorf("dispatcher: oracle is required")
	}
	if caps == nil {
		return nil, fmt.Errorf("dispatcher: capability map is required")
	}
	d := &Dispatcher{
		oracle:      oracle,
		caps:        caps,
		prompts:     DefaultPrompts,
		maxRounds:   DefaultMaxRounds,
		maxParallel: DefaultMaxParallel,
		emitter:     core.NoopEventEmitter{},
		log:         slog.Default(),
		tracer:      otel.Tracer("campusdesk/dispatcher"),
		offered:     make(map[core.Role][]llm.Tool),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.audit != nil {
		d.audit = audit.Redacting(d.audit, d.redactor)
	}
	for _, role := range core.Roles() {
		d.offered[role] = ProjectTools(caps.Resolve(role))
	}
	return d, nil
}

// ProjectTools converts descriptors into oracle tool definitions.
func ProjectTools(descs []*tools.Descriptor) []llm.Tool {
	out := make([]llm.Tool, 0, len(descs))
	for _, d := range descs {
		out = append(out, llm.NewFunctionTool(d.Name, d.Description, d.Schema()))
	}
	return out
}

// HandleTurn runs one request to completion. It never returns raw errors;
// failures are reported through Status and a fixed text.
func (d *Dispatcher) HandleTurn(ctx context.Context, req TurnRequest) TurnResponse {
	ctx, runID := core.EnsureRunID(ctx)

	sc, err := sessionFor(req)
	if err != nil {
		d.log.WarnContext(ctx, "dispatcher.turn.invalid_session",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return TurnResponse{Text: InvalidText, Status: StatusFailed, Role: req.Role, RunID: runID, Code: kerrors.CodeUnauthenticated}
	}
	ctx = core.WithSession(ctx, sc)
	role := sc.Role()
	if strings.TrimSpace(req.Message) == "" {
		return TurnResponse{Text: EmptyText, Status: StatusFailed, Role: role, RunID: runID, Code: kerrors.CodeValidationFailed}
	}

	ctx, span := d.tracer.Start(ctx, "Dispatcher.HandleTurn")
	defer span.End()
	span.SetAttributes(telemetry.TurnAttributes(string(role), runID, d.maxRounds)...)
	offered := d.offered[role]
	span.SetAttributes(telemetry.ToolsetAttributes(d.caps.Names(role))...)

	d.log.InfoContext(ctx, "dispatcher.turn.start",
		slog.String("run_id", runID),
		slog.String("role", string(role)),
		slog.Int64("identity_id", sc.IdentityID()),
		slog.Int("tools", len(offered)),
	)
	d.emit(ctx, core.EventTurnStarted, role, runID, map[string]any{"identity_id": sc.IdentityID()})

	resp := d.run(ctx, sc, runID, newConversation(sc, req.Message), offered)
	resp.Role = role
	resp.RunID = runID

	span.SetAttributes(attribute.String(telemetry.AttrTurnStatus, string(resp.Status)))
	d.metrics.RecordTurn(ctx, string(role), string(resp.Status))
	if resp.Status == StatusFailed {
		span.SetStatus(codes.Error, resp.Text)
		d.emit(ctx, core.EventTurnFailed, role, runID, map[string]any{"message": resp.Text})
	} else {
		d.emit(ctx, core.EventTurnCompleted, role, runID, map[string]any{"message": resp.Text})
	}
	d.log.InfoContext(ctx, "dispatcher.turn.complete",
		slog.String("run_id", runID),
		slog.String("role", string(role)),
		slog.String("status", string(resp.Status)),
	)
	return resp
}

func sessionFor(req TurnRequest) (*core.SessionContext, error) {
	if req.Claims != nil {
		return core.FromClaims(*req.Claims)
	}
	return core.NewSession(req.Role, req.IdentityID, req.DisplayName), nil
}

// run is the REASON / DISPATCH_TOOLS loop.
func (d *Dispatcher) run(ctx context.Context, sc *core.SessionContext, runID string, conv *Conversation, offered []llm.Tool) TurnResponse {
	for round := 1; ; round++ {
		conv.prependContext(d.prompts.For(sc.Role()))

		out, err := d.reason(ctx, sc, runID, conv, offered, round)
		if err != nil {
			return TurnResponse{Text: UnavailableText, Status: StatusFailed, Code: kerrors.CodeOracleUnavailable}
		}

		if len(out.ToolCalls) == 0 {
			text := strings.TrimSpace(out.Content)
			if text == "" {
				text = FallbackText
			}
			return TurnResponse{Text: text, Status: StatusSuccess}
		}

		if round >= d.maxRounds {
			d.log.WarnContext(ctx, "dispatcher.turn.max_rounds",
				slog.String("run_id", runID),
				slog.Int("max_rounds", d.maxRounds),
				slog.Int("pending_tool_calls", len(out.ToolCalls)),
			)
			return TurnResponse{Text: MaxRoundsText, Status: StatusFailed, Code: kerrors.CodeMaxRounds}
		}

		calls := withCallIDs(out.ToolCalls)
		conv.Append(AssistantMessage{Text: out.Content, ToolCalls: calls})
		conv.Append(d.dispatch(ctx, sc, runID, calls, round)...)
	}
}

// reason performs one oracle call.
func (d *Dispatcher) reason(ctx context.Context, sc *core.SessionContext, runID string, conv *Conversation, offered []llm.Tool, round int) (*llm.ChatResponse, error) {
	ctx, span := d.tracer.Start(ctx, "Dispatcher.Reason")
	defer span.End()
	span.SetAttributes(telemetry.LLMAttributes(d.model, conv.Len(), round)...)

	start := time.Now()
	out, err := d.oracle.Chat(ctx, llm.ChatRequest{
		Model:       d.model,
		Messages:    conv.LLMMessages(),
		Tools:       offered,
		Temperature: d.temperature,
	})
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err == nil && out == nil {
		err = kerrors.New(kerrors.CodeOracleUnavailable, "oracle returned no response", nil)
	}
	d.metrics.RecordOracleCall(ctx, elapsed, err)
	d.emit(ctx, core.EventOracleCalled, sc.Role(), runID, map[string]any{
		"round":       round,
		"duration_ms": elapsed,
		"ok":          err == nil,
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kerrors.CodeOf(err)))
		d.log.ErrorContext(ctx, "dispatcher.oracle.error",
			slog.String("run_id", runID),
			slog.Int("round", round),
			slog.String("error_code", string(kerrors.CodeOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetAttributes(telemetry.LLMUsageAttributes(out.Usage.PromptTokens, out.Usage.CompletionTokens, len(out.ToolCalls), elapsed)...)
	d.log.DebugContext(ctx, "dispatcher.oracle.response",
		slog.String("run_id", runID),
		slog.Int("round", round),
		slog.Int("tool_calls", len(out.ToolCalls)),
		slog.Float64("duration_ms", elapsed),
	)
	return out, nil
}

// withCallIDs fills in ids the oracle omitted so every result can be
// paired with its call.
func withCallIDs(calls []llm.ToolCall) []llm.ToolCall {
	out := make([]llm.ToolCall, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = "call_" + uuid.NewString()
		}
		if c.Type == "" {
			c.Type = llm.ToolTypeFunction
		}
		out[i] = c
	}
	return out
}

// dispatch runs sibling calls concurrently and returns their results in
// request order. A failing call never cancels its siblings.
func (d *Dispatcher) dispatch(ctx context.Context, sc *core.SessionContext, runID string, calls []llm.ToolCall, round int) []Message {
	results := make([]Message, len(calls))
	var g errgroup.Group
	g.SetLimit(d.maxParallel)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = d.invoke(ctx, sc, runID, call, round)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// invoke executes one call, looking the tool up in the role's set only.
func (d *Dispatcher) invoke(ctx context.Context, sc *core.SessionContext, runID string, call llm.ToolCall, round int) ToolResultMessage {
	name := call.Function.Name
	role := sc.Role()
	ctx, span := d.tracer.Start(ctx, "Dispatcher.Tool")
	defer span.End()

	start := time.Now()
	desc, permitted := d.caps.Lookup(role, name)
	var (
		result tools.Result
		domain string
	)
	if !permitted {
		result = d.caps.Denial(role, name)
		span.SetAttributes(telemetry.PolicyAttributes(false, "not in role tool set")...)
		d.metrics.RecordDenial(ctx, string(role), name)
		d.log.WarnContext(ctx, "dispatcher.tool.denied",
			slog.String("run_id", runID),
			slog.String("role", string(role)),
			slog.String("tool", name),
			slog.String("call_id", call.ID),
		)
		d.emit(ctx, core.EventToolRejected, role, runID, map[string]any{"tool": name, "call_id": call.ID})
	} else {
		domain = desc.Domain
		result = desc.Invoke(ctx, sc, call.Function.Arguments)
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	span.SetAttributes(telemetry.ToolCallAttributes(name, domain, call.ID, elapsed, string(result.Status), string(result.Code))...)
	span.SetAttributes(telemetry.ToolCallArgsResult(d.redact(ctx, call.Function.Arguments), d.redact(ctx, result.Message), 0)...)
	if result.IsFailed() {
		span.SetStatus(codes.Error, string(result.Code))
	}

	if permitted {
		d.metrics.RecordToolCall(ctx, name, string(result.Status), result.Code, elapsed)
		attrs := []any{
			slog.String("run_id", runID),
			slog.String("tool", name),
			slog.String("call_id", call.ID),
			slog.String("status", string(result.Status)),
			slog.Float64("duration_ms", elapsed),
		}
		if result.IsFailed() {
			attrs = append(attrs, slog.String("error_code", string(result.Code)))
			if cause := result.Cause(); cause != nil {
				attrs = append(attrs, slog.String("error", cause.Error()))
			}
		}
		d.log.InfoContext(ctx, "dispatcher.tool.result", attrs...)
		d.emit(ctx, core.EventToolDispatched, role, runID, map[string]any{
			"tool":    name,
			"call_id": call.ID,
			"status":  string(result.Status),
		})
	}

	d.record(ctx, audit.Entry{
		RunID:      runID,
		CallID:     call.ID,
		Role:       string(role),
		IdentityID: sc.IdentityID(),
		Tool:       name,
		Arguments:  call.Function.Arguments,
		Status:     string(result.Status),
		Code:       string(result.Code),
		Message:    result.Message,
		Round:      round,
		StartedAt:  start,
		DurationMs: elapsed,
	})
	return ToolResultMessage{CallID: call.ID, ToolName: name, Result: result}
}

func (d *Dispatcher) record(ctx context.Context, e audit.Entry) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Record(ctx, e); err != nil {
		d.log.WarnContext(ctx, "dispatcher.audit.error",
			slog.String("run_id", e.RunID),
			slog.String("tool", e.Tool),
			slog.String("error", err.Error()),
		)
	}
}

func (d *Dispatcher) redact(ctx context.Context, text string) string {
	if d.redactor == nil {
		return text
	}
	return d.redactor.Redact(ctx, text)
}

func (d *Dispatcher) emit(ctx context.Context, t core.EventType, role core.Role, runID string, payload map[string]any) {
	d.emitter.Emit(ctx, core.NewEvent(t, role, runID, payload))
}
