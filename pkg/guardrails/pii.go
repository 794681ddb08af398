// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// PIIFilterMode selects the replacement text.
type PIIFilterMode int

const (
	// PIIFilterMask replaces matches with a placeholder such as "[EMAIL]".
	PIIFilterMask PIIFilterMode = iota
	// PIIFilterRedact removes matches.
	PIIFilterRedact
	// PIIFilterHash replaces matches with a short stable hash so rows can
	// be correlated without exposing the value.
	PIIFilterHash
)

// PIIType names a kind of sensitive value.
type PIIType string

const (
	PIITypeSecret    PIIType = "secret"
	PIITypeEmail     PIIType = "email"
	PIITypePhone     PIIType = "phone"
	PIITypeIPAddress PIIType = "ip_address"
)

type piiPattern struct {
	piiType PIIType
	pattern *regexp.Regexp
	mask    string
	// keep is the submatch left in place around the replacement.
	keep int
}

// Secrets first: a password may itself look like an email or phone.
var defaultPIIPatterns = []struct {
	piiType PIIType
	pattern string
	mask    string
	keep    int
}{
	{PIITypeSecret, `("(?:password|api_key|token)"\s*:\s*)"(?:[^"\\]|\\.)*"`, `"[SECRET]"`, 1},
	{PIITypeEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[EMAIL]", 0},
	{PIITypePhone, `(?:\+[0-9]{1,3}[-.\s]?)?\(?\b[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s][0-9]{4}\b`, "[PHONE]", 0},
	{PIITypeIPAddress, `\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`, "[IP_ADDRESS]", 0},
}

// PIIFilter masks personal data and credentials in text.
type PIIFilter struct {
	mode     PIIFilterMode
	patterns []piiPattern
	enabled  map[PIIType]bool
}

// PIIFilterOption configures a PIIFilter.
type PIIFilterOption func(*PIIFilter)

// NewPIIFilter builds a filter with every type enabled.
func NewPIIFilter(mode PIIFilterMode, opts ...PIIFilterOption) *PIIFilter {
	f := &PIIFilter{mode: mode, enabled: make(map[PIIType]bool)}
	for _, p := range defaultPIIPatterns {
		f.patterns = append(f.patterns, piiPattern{
			piiType: p.piiType,
			pattern: regexp.MustCompile(p.pattern),
			mask:    p.mask,
			keep:    p.keep,
		})
		f.enabled[p.piiType] = true
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithPIITypes enables only types.
func WithPIITypes(types ...PIIType) PIIFilterOption {
	return func(f *PIIFilter) {
		for k := range f.enabled {
			f.enabled[k] = false
		}
		for _, t := range types {
			f.enabled[t] = true
		}
	}
}

// WithExcludePII disables types.
func WithExcludePII(types ...PIIType) PIIFilterOption {
	return func(f *PIIFilter) {
		for _, t := range types {
			f.enabled[t] = false
		}
	}
}

// WithCustomPIIPattern adds a pattern. Invalid patterns are ignored.
func WithCustomPIIPattern(piiType PIIType, pattern, mask string) PIIFilterOption {
	return func(f *PIIFilter) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return
		}
		f.patterns = append(f.patterns, piiPattern{piiType: piiType, pattern: re, mask: mask})
		f.enabled[piiType] = true
	}
}

// ID implements OutputFilter.
func (f *PIIFilter) ID() string { return "pii-filter" }

// FilterOutput implements OutputFilter.
func (f *PIIFilter) FilterOutput(ctx context.Context, text string) FilterResult {
	result := FilterResult{Content: text}
	if text == "" {
		return result
	}
	for _, p := range f.patterns {
		if !f.enabled[p.piiType] {
			continue
		}
		if ctx.Err() != nil {
			return result
		}
		matches := p.pattern.FindAllStringSubmatchIndex(result.Content, -1)
		// Right to left keeps earlier offsets valid.
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			start, end := m[0], m[1]
			prefix := ""
			if p.keep > 0 {
				prefix = result.Content[m[2*p.keep]:m[2*p.keep+1]]
			}
			replacement := prefix + f.replacement(p, result.Content[start+len(prefix):end])
			result.Redactions = append(result.Redactions, Redaction{
				Type:        string(p.piiType),
				Replacement: replacement,
				Position:    start,
			})
			result.Content = result.Content[:start] + replacement + result.Content[end:]
			result.Modified = true
		}
	}
	return result
}

// Redact returns text with every enabled type replaced.
func (f *PIIFilter) Redact(ctx context.Context, text string) string {
	return f.FilterOutput(ctx, text).Content
}

func (f *PIIFilter) replacement(p piiPattern, original string) string {
	switch f.mode {
	case PIIFilterRedact:
		if p.piiType == PIITypeSecret {
			return `""`
		}
		return ""
	case PIIFilterHash:
		if p.piiType == PIITypeSecret {
			return p.mask
		}
		h := fnv.New64a()
		h.Write([]byte(original))
		sum := fmt.Sprintf("%016x", h.Sum64())[:8]
		return strings.TrimSuffix(p.mask, "]") + "_" + strings.ToUpper(sum) + "]"
	default:
		return p.mask
	}
}

// WithPIIFilter appends a PIIFilter to the chain.
func WithPIIFilter(mode PIIFilterMode, opts ...PIIFilterOption) Option {
	return WithOutputFilter(NewPIIFilter(mode, opts...))
}
