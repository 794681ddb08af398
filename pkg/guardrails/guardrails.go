// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails scrubs sensitive values from tool traffic before it
// leaves the request: audit rows, span attributes and log lines.
//
// Filters run in sequence and each one sees the output of the previous:
//
//	chain := guardrails.New(
//	    guardrails.WithPIIFilter(guardrails.PIIFilterMask),
//	)
//	safe := chain.Redact(ctx, rawArguments)
package guardrails

import (
	"context"
	"sync"
)

// FilterResult is the outcome of one filter pass.
type FilterResult struct {
	Content    string
	Modified   bool
	Redactions []Redaction
}

// Redaction describes one replaced span. The original text is never kept.
type Redaction struct {
	Type        string
	Replacement string
	Position    int
}

// OutputFilter rewrites text.
type OutputFilter interface {
	FilterOutput(ctx context.Context, text string) FilterResult
	ID() string
}

// Chain runs output filters in order.
type Chain struct {
	mu      sync.RWMutex
	filters []OutputFilter
}

// Option configures a Chain.
type Option func(*Chain)

// New builds a chain.
func New(opts ...Option) *Chain {
	c := &Chain{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithOutputFilter appends f.
func WithOutputFilter(f OutputFilter) Option {
	return func(c *Chain) { c.filters = append(c.filters, f) }
}

// FilterOutput runs every filter. A cancelled context returns what has
// been filtered so far.
func (c *Chain) FilterOutput(ctx context.Context, text string) FilterResult {
	c.mu.RLock()
	filters := c.filters
	c.mu.RUnlock()

	result := FilterResult{Content: text}
	for _, f := range filters {
		if ctx.Err() != nil {
			return result
		}
		r := f.FilterOutput(ctx, result.Content)
		if r.Modified {
			result.Content = r.Content
			result.Modified = true
			result.Redactions = append(result.Redactions, r.Redactions...)
		}
	}
	return result
}

// Redact returns text with every filter applied.
func (c *Chain) Redact(ctx context.Context, text string) string {
	if c == nil || text == "" {
		return text
	}
	return c.FilterOutput(ctx, text).Content
}

// AddOutputFilter appends a filter at runtime.
func (c *Chain) AddOutputFilter(f OutputFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, f)
}

// Len returns the number of filters.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filters)
}
