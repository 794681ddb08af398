package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jllopis/campusdesk/pkg/core"
)

func noop(context.Context, *core.SessionContext, Args) Result { return OK(nil) }

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	a := &Descriptor{Name: "list_events", Gate: Allow("x", core.RoleAdmin), Handler: noop}
	b := &Descriptor{Name: "list_events", Gate: Allow("y", core.RoleTeacher), Handler: noop}
	_, err := NewCatalog(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list_events")
}

func TestNewCatalogRejectsIncompleteDescriptors(t *testing.T) {
	tests := []struct {
		name string
		desc *Descriptor
	}{
		{"no name", &Descriptor{Gate: Allow("x", core.RoleAdmin), Handler: noop}},
		{"no handler", &Descriptor{Name: "a", Gate: Allow("x", core.RoleAdmin)}},
		{"no roles", &Descriptor{Name: "a", Handler: noop}},
		{"repeated param", &Descriptor{
			Name: "a", Gate: Allow("x", core.RoleAdmin), Handler: noop,
			Params: []Param{{Name: "p", Type: TypeString}, {Name: "p", Type: TypeInteger}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.desc)
			assert.Error(t, err)
		})
	}
}

func TestStandardCatalog(t *testing.T) {
	f := newFixture(t)
	all := f.catalog.All()
	require.NotEmpty(t, all)
	assert.Equal(t, len(all), f.catalog.Len())

	for _, d := range all {
		assert.NotEmpty(t, d.Domain, d.Name)
		assert.NotEmpty(t, d.Description, d.Name)
		assert.NotEmpty(t, d.Gate.Denial, d.Name)
		schema := d.Schema()
		assert.Equal(t, "object", schema["type"], d.Name)
	}

	for _, name := range []string{
		"create_announcement", "update_announcement", "create_subject", "mark_attendance",
		"submit_assignment", "get_my_results", "check_entity_exists", "enroll_student",
	} {
		_, ok := f.catalog.Lookup(name)
		assert.True(t, ok, name)
	}
	assert.Len(t, f.catalog.Domain("announcement"), 5)
}

func TestSchemaProjection(t *testing.T) {
	f := newFixture(t)
	d, ok := f.catalog.Lookup("create_assignment")
	require.True(t, ok)

	schema := d.Schema()
	props := schema["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string", "format": "date", "description": "Due date, YYYY-MM-DD"}, props["due_date"])
	assert.Equal(t, 100.0, props["total_marks"].(map[string]any)["default"])
	assert.ElementsMatch(t, []any{"title", "description", "due_date", "subject_name"}, schema["required"])
}

func TestResultRendering(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"failure hides data", Result{Status: StatusFailed, Message: "Teacher not found", Data: 1}, `{"message":"Teacher not found","status":"failed"}`},
		{"success with data", OK(map[string]any{"id": 1}), `{"status":"success","data":{"id":1}}`},
		{"success with message", Done("Event deleted successfully", nil), `{"message":"Event deleted successfully","status":"success"}`},
		{"zero value", Result{}, `{"status":"failed"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, tt.result.Render())
		})
	}
}
