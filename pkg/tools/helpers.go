package tools

import (
	"context"
	"time"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/resolver"
	"github.com/jllopis/campusdesk/pkg/store"
)

var (
	adminOnly   = []core.Role{core.RoleAdmin}
	teacherOnly = []core.Role{core.RoleTeacher}
	studentOnly = []core.Role{core.RoleStudent}
	staff       = []core.Role{core.RoleAdmin, core.RoleTeacher}
	everyone    = []core.Role{core.RoleAdmin, core.RoleTeacher, core.RoleStudent}
)

const unauthorized = "Unauthorized access"

// ref maps a name-valued parameter onto a foreign-key column.
type ref struct {
	param  string
	kind   store.Kind
	column string
}

// resolveRefs resolves each supplied ref into fields. It stops at the
// first miss and returns the corresponding failure.
func (d deps) resolveRefs(ctx context.Context, args Args, fields store.Fields, refs ...ref) (Result, bool) {
	for _, r := range refs {
		if !args.Has(r.param) {
			continue
		}
		id, err := d.resolve.Resolve(ctx, r.kind, args.String(r.param))
		if err != nil {
			return FromError(r.kind, err), false
		}
		fields[r.column] = id
	}
	return Result{}, true
}

func today() string { return time.Now().Format(DateLayout) }

func plural(kind store.Kind) string {
	switch kind {
	case store.KindAttendance:
		return "attendance records"
	default:
		return string(kind) + "s"
	}
}

func listing(kind store.Kind, records []store.Record, err error) Result {
	if err != nil {
		return FromError(kind, err)
	}
	if len(records) == 0 {
		return Done("No "+plural(kind)+" found", records)
	}
	return OK(records)
}

func listTool(d deps, name, domain string, kind store.Kind, gate Gate, description string) *Descriptor {
	return &Descriptor{
		Name:        name,
		Domain:      domain,
		Description: description,
		Gate:        gate,
		Handler: func(ctx context.Context, _ *core.SessionContext, _ Args) Result {
			records, err := d.store.List(ctx, kind, store.Filter{})
			return listing(kind, records, err)
		},
	}
}

func idParam(name string, kind store.Kind) Param {
	return Param{Name: name, Type: TypeInteger, Required: true, Description: "Numeric id of the " + string(kind)}
}

func getTool(d deps, name, domain string, kind store.Kind, id string, gate Gate, description string) *Descriptor {
	return &Descriptor{
		Name:        name,
		Domain:      domain,
		Description: description,
		Params:      []Param{idParam(id, kind)},
		Gate:        gate,
		Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
			rec, err := d.store.Get(ctx, kind, args.Int(id))
			if err != nil {
				return FromError(kind, err)
			}
			return OK(rec)
		},
	}
}

func deleteTool(d deps, name, domain string, kind store.Kind, id string, gate Gate, description string) *Descriptor {
	return &Descriptor{
		Name:        name,
		Domain:      domain,
		Description: description,
		Params:      []Param{idParam(id, kind)},
		Gate:        gate,
		Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
			if err := d.store.Delete(ctx, kind, args.Int(id)); err != nil {
				return FromError(kind, err)
			}
			return Done(resolver.EntityLabel(kind)+" deleted successfully", nil)
		},
	}
}

// updateTool builds a sparse-patch update addressed by numeric id. Only
// supplied fields are written; refs are resolved from names first.
func updateTool(d deps, name, domain string, kind store.Kind, id string, fields []Param, refs []ref, gate Gate, description string) *Descriptor {
	params := append([]Param{idParam(id, kind)}, fields...)
	var direct []string
	isRef := make(map[string]bool, len(refs))
	for _, r := range refs {
		isRef[r.param] = true
	}
	for _, p := range fields {
		if !isRef[p.Name] {
			direct = append(direct, p.Name)
		}
	}
	return &Descriptor{
		Name:        name,
		Domain:      domain,
		Description: description,
		Params:      params,
		Gate:        gate,
		Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
			patch := args.Patch(params, direct...)
			if res, ok := d.resolveRefs(ctx, args, patch, refs...); !ok {
				return res
			}
			rec, err := d.store.Update(ctx, kind, args.Int(id), patch)
			if err != nil {
				return FromError(kind, err)
			}
			return Done(resolver.EntityLabel(kind)+" updated successfully", rec)
		},
	}
}

// optional returns copies of params with Required and Default cleared,
// used to derive update parameters from create parameters.
func optional(params ...Param) []Param {
	out := make([]Param, len(params))
	for i, p := range params {
		p.Required = false
		p.Default = nil
		out[i] = p
	}
	return out
}
