// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package governance

import (
	"context"
	"path"
	"strings"

	"github.com/jllopis/campusdesk/pkg/config"
	"github.com/jllopis/campusdesk/pkg/core"
)

// ToolFilter narrows tool names by deny patterns and an optional policy
// engine. It never widens what a role is granted.
type ToolFilter struct {
	denylist     map[string]bool
	policyEngine PolicyEngine
}

// ToolFilterOption configures a ToolFilter.
type ToolFilterOption func(*ToolFilter)

// NewToolFilter creates a new ToolFilter with the given options.
func NewToolFilter(opts ...ToolFilterOption) *ToolFilter {
	tf := &ToolFilter{denylist: make(map[string]bool)}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// WithDenylist sets the denylist of forbidden tool names/patterns.
func WithDenylist(tools []string) ToolFilterOption {
	return func(tf *ToolFilter) {
		for _, tool := range tools {
			tool = strings.TrimSpace(tool)
			if tool != "" {
				tf.denylist[tool] = true
			}
		}
	}
}

// WithPolicyEngine attaches a policy engine for additional evaluation.
func WithPolicyEngine(engine PolicyEngine) ToolFilterOption {
	return func(tf *ToolFilter) {
		tf.policyEngine = engine
	}
}

// IsAllowed checks whether role may keep toolName.
// Evaluation order:
// 1. If denylist matches tool → deny
// 2. If policy engine exists, evaluate → respect decision
// 3. Otherwise → allow
func (tf *ToolFilter) IsAllowed(ctx context.Context, role core.Role, toolName string) Decision {
	if tf.matchesList(toolName, tf.denylist) {
		return Decision{
			Allowed: false,
			Status:  DecisionStatusDeny,
			Reason:  "tool is in denylist",
		}
	}

	if tf.policyEngine != nil {
		return tf.policyEngine.Evaluate(ctx, Action{Role: role, Tool: toolName})
	}

	return Decision{
		Allowed: true,
		Status:  DecisionStatusAllow,
	}
}

// FilterTools returns only the tool names that pass the filter.
func (tf *ToolFilter) FilterTools(ctx context.Context, role core.Role, toolNames []string) []string {
	if tf == nil || (len(tf.denylist) == 0 && tf.policyEngine == nil) {
		return toolNames
	}

	filtered := make([]string, 0, len(toolNames))
	for _, name := range toolNames {
		if tf.IsAllowed(ctx, role, name).IsAllowed() {
			filtered = append(filtered, name)
		}
	}
	return filtered
}

// matchesList supports exact names and glob patterns such as "delete_*".
func (tf *ToolFilter) matchesList(toolName string, list map[string]bool) bool {
	if list[toolName] {
		return true
	}
	for pattern := range list {
		if ok, err := path.Match(pattern, toolName); err == nil && ok {
			return true
		}
	}
	return false
}

// FilterFromConfig combines the configured deny list and policies.
func FilterFromConfig(cfg config.GovernanceConfig) *ToolFilter {
	opts := []ToolFilterOption{WithDenylist(cfg.DenyTools)}
	if len(cfg.Policies) > 0 {
		opts = append(opts, WithPolicyEngine(RuleSetFromConfig(cfg)))
	}
	return NewToolFilter(opts...)
}
