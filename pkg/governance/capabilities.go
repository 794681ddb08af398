package governance

import (
	"context"
	"fmt"

	"github.com/jllopis/campusdesk/pkg/core"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/tools"
)

// Grant admits one catalog domain, or a subset of its tools when Tools is
// set, into a role's tool set.
type Grant struct {
	Domain string
	Tools  []string
}

// DefaultGrants is the role grant table. Order is the order tools are
// offered to the oracle.
var DefaultGrants = map[core.Role][]Grant{
	core.RoleAdmin: {
		{Domain: "student"},
		{Domain: "teacher"},
		{Domain: "course"},
		{Domain: "section"},
		{Domain: "subject"},
		{Domain: "enrollment"},
		{Domain: "event"},
		{Domain: "result", Tools: []string{"list_results", "get_result"}},
		{Domain: "assignment"},
		{Domain: "submission"},
		{Domain: "attendance"},
		{Domain: "announcement"},
		{Domain: "lookup"},
	},
	core.RoleTeacher: {
		{Domain: "announcement"},
		{Domain: "assignment"},
		{Domain: "attendance"},
		{Domain: "result"},
		{Domain: "student", Tools: []string{"list_students", "get_student"}},
		{Domain: "submission"},
		{Domain: "lookup"},
	},
	core.RoleStudent: {
		{Domain: "self"},
		{Domain: "announcement", Tools: []string{"list_announcements", "get_announcement"}},
		{Domain: "assignment", Tools: []string{"list_assignments", "get_assignment"}},
		{Domain: "submission", Tools: []string{"submit_assignment"}},
		{Domain: "event", Tools: []string{"list_events", "get_event"}},
		{Domain: "course", Tools: []string{"get_course"}},
		{Domain: "subject", Tools: []string{"get_subject"}},
	},
}

// CapabilityMap is the immutable role to tool set table, built once at
// startup. Sets are deduplicated by tool name and exclude tools whose gate
// rejects the role.
type CapabilityMap struct {
	catalog *tools.Catalog
	sets    map[core.Role][]*tools.Descriptor
	index   map[core.Role]map[string]*tools.Descriptor
}

// NewCapabilityMap expands grants against catalog. A grant naming a domain
// or tool the catalog lacks is a configuration error. filter may be nil.
func NewCapabilityMap(ctx context.Context, catalog *tools.Catalog, grants map[core.Role][]Grant, filter *ToolFilter) (*CapabilityMap, error) {
	m := &CapabilityMap{
		catalog: catalog,
		sets:    make(map[core.Role][]*tools.Descriptor, len(grants)),
		index:   make(map[core.Role]map[string]*tools.Descriptor, len(grants)),
	}
	for role, roleGrants := range grants {
		var names []string
		byName := make(map[string]*tools.Descriptor)
		for _, g := range roleGrants {
			descs, err := expand(catalog, g)
			if err != nil {
				return nil, fmt.Errorf("grants for %s: %w", role, err)
			}
			for _, d := range descs {
				if _, dup := byName[d.Name]; dup || !d.Gate.Allows(role) {
					continue
				}
				byName[d.Name] = d
				names = append(names, d.Name)
			}
		}

		names = filter.FilterTools(ctx, role, names)
		set := make([]*tools.Descriptor, 0, len(names))
		kept := make(map[string]*tools.Descriptor, len(names))
		for _, n := range names {
			set = append(set, byName[n])
			kept[n] = byName[n]
		}
		m.sets[role] = set
		m.index[role] = kept
	}
	return m, nil
}

func expand(catalog *tools.Catalog, g Grant) ([]*tools.Descriptor, error) {
	if len(g.Tools) == 0 {
		descs := catalog.Domain(g.Domain)
		if len(descs) == 0 {
			return nil, fmt.Errorf("unknown domain %q", g.Domain)
		}
		return descs, nil
	}
	descs := make([]*tools.Descriptor, 0, len(g.Tools))
	for _, name := range g.Tools {
		d, ok := catalog.Lookup(name)
		if !ok || d.Domain != g.Domain {
			return nil, fmt.Errorf("unknown tool %q in domain %q", name, g.Domain)
		}
		descs = append(descs, d)
	}
	return descs, nil
}

// Resolve returns the ordered tool set of role. Unknown roles get an
// empty set. The returned slice is a copy.
func (m *CapabilityMap) Resolve(role core.Role) []*tools.Descriptor {
	return append([]*tools.Descriptor(nil), m.sets[role]...)
}

// Lookup returns the named tool only if it is in role's set.
func (m *CapabilityMap) Lookup(role core.Role, name string) (*tools.Descriptor, bool) {
	d, ok := m.index[role][name]
	return d, ok
}

// Names returns the tool names of role in order.
func (m *CapabilityMap) Names(role core.Role) []string {
	set := m.sets[role]
	names := make([]string, len(set))
	for i, d := range set {
		names[i] = d.Name
	}
	return names
}

// Permitted reports whether name is in role's set.
func (m *CapabilityMap) Permitted(role core.Role, name string) bool {
	_, ok := m.index[role][name]
	return ok
}

// Denial is the result of calling name outside role's set. No handler
// runs. A catalog tool whose gate rejects the role answers with its own
// AUTHORIZATION_DENIED message. Unknown names, and tools withheld by
// grants or policy, are NOT_PERMITTED_TOOL.
func (m *CapabilityMap) Denial(role core.Role, name string) tools.Result {
	if d, ok := m.catalog.Lookup(name); ok && !d.Gate.Allows(role) {
		return tools.Failed(kerrors.CodeAuthorizationDenied, d.Gate.Denial)
	}
	return tools.Failed(kerrors.CodeNotPermittedTool, fmt.Sprintf("Tool %s is not available for your role", name))
}
