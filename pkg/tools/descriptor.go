// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/jllopis/campusdesk/pkg/core"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
)

// Handler executes a tool after the gate and argument checks passed.
type Handler func(ctx context.Context, sc *core.SessionContext, args Args) Result

// Gate is the role precondition a tool enforces itself.
type Gate struct {
	Roles  []core.Role
	Denial string
}

// Allow builds a gate admitting roles and failing others with denial.
func Allow(denial string, roles ...core.Role) Gate {
	return Gate{Roles: roles, Denial: denial}
}

// Allows reports whether role passes the gate.
func (g Gate) Allows(role core.Role) bool {
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Descriptor is the canonical contract of one tool. Descriptors are
// immutable once registered in a Catalog.
type Descriptor struct {
	Name        string
	Domain      string
	Description string
	Params      []Param
	Gate        Gate
	Handler     Handler

	schemaDoc map[string]any
	schema    *jsonschema.Schema
}

// Schema returns the JSON Schema of the tool parameters. Callers must
// not modify it.
func (d *Descriptor) Schema() map[string]any {
	if d.schemaDoc == nil {
		return buildSchema(d.Params)
	}
	return d.schemaDoc
}

func (d *Descriptor) compile() error {
	if d.Name == "" {
		return fmt.Errorf("tool without name")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %s has no handler", d.Name)
	}
	if len(d.Gate.Roles) == 0 {
		return fmt.Errorf("tool %s admits no role", d.Name)
	}
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if seen[p.Name] {
			return fmt.Errorf("tool %s declares %s twice", d.Name, p.Name)
		}
		seen[p.Name] = true
	}
	d.schemaDoc = buildSchema(d.Params)
	sch, err := compileSchema(d.Name, d.schemaDoc)
	if err != nil {
		return err
	}
	d.schema = sch
	return nil
}

// Invoke runs the tool for session sc with JSON-encoded arguments. The
// gate is checked before anything else so a denied call never reaches
// argument parsing or the handler.
func (d *Descriptor) Invoke(ctx context.Context, sc *core.SessionContext, rawArgs string) Result {
	if !d.Gate.Allows(sc.Role()) {
		return Failed(kerrors.CodeAuthorizationDenied, d.Gate.Denial)
	}
	args, err := ParseArgs(rawArgs)
	if err != nil {
		r := Failed(kerrors.CodeValidationFailed, "Invalid arguments for "+d.Name+": arguments must be a JSON object")
		r.cause = err
		return r
	}
	return d.InvokeArgs(ctx, sc, args)
}

// InvokeArgs is Invoke for already decoded arguments.
func (d *Descriptor) InvokeArgs(ctx context.Context, sc *core.SessionContext, args Args) (result Result) {
	if !d.Gate.Allows(sc.Role()) {
		return Failed(kerrors.CodeAuthorizationDenied, d.Gate.Denial)
	}
	if args.values == nil {
		args.values = map[string]any{}
	}
	coerce(d.Params, args.values)
	if d.schema != nil {
		if err := d.schema.Validate(args.values); err != nil {
			r := Failed(kerrors.CodeValidationFailed, "Invalid arguments for "+d.Name+": "+validationMessage(err))
			r.cause = err
			return r
		}
	}
	args = args.withDefaults(d.Params)

	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "tool.panic",
				slog.String("tool", d.Name),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			result = Failed(kerrors.CodeInternal, "The request could not be completed")
			result.cause = fmt.Errorf("tool %s panicked: %v", d.Name, rec)
		}
	}()
	return d.Handler(ctx, sc, args)
}
