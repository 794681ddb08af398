package tools

import (
	"fmt"

	"github.com/jllopis/campusdesk/pkg/resolver"
	"github.com/jllopis/campusdesk/pkg/store"
)

// Catalog is the fixed, name-keyed set of tool descriptors.
type Catalog struct {
	ordered []*Descriptor
	byName  map[string]*Descriptor
}

// NewCatalog validates and compiles descriptors. Duplicate names are an
// error: every tool has exactly one canonical contract.
func NewCatalog(descs ...*Descriptor) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if d == nil {
			continue
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		if err := d.compile(); err != nil {
			return nil, err
		}
		c.byName[d.Name] = d
		c.ordered = append(c.ordered, d)
	}
	return c, nil
}

// Lookup returns the descriptor registered under name.
func (c *Catalog) Lookup(name string) (*Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// All returns every descriptor in registration order.
func (c *Catalog) All() []*Descriptor {
	return append([]*Descriptor(nil), c.ordered...)
}

// Domain returns the descriptors of one domain in registration order.
func (c *Catalog) Domain(domain string) []*Descriptor {
	var out []*Descriptor
	for _, d := range c.ordered {
		if d.Domain == domain {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of tools.
func (c *Catalog) Len() int { return len(c.ordered) }

// deps are the collaborators handlers close over.
type deps struct {
	store   store.Store
	resolve *resolver.Resolver
}

// Standard builds the full catalog over s.
func Standard(s store.Store) (*Catalog, error) {
	d := deps{store: s, resolve: resolver.New(s)}
	var all []*Descriptor
	for _, group := range [][]*Descriptor{
		announcementTools(d),
		eventTools(d),
		sectionTools(d),
		studentTools(d),
		teacherTools(d),
		courseTools(d),
		subjectTools(d),
		enrollmentTools(d),
		resultTools(d),
		attendanceTools(d),
		assignmentTools(d),
		submissionTools(d),
		selfServiceTools(d),
		lookupTools(d),
	} {
		all = append(all, group...)
	}
	return NewCatalog(all...)
}
