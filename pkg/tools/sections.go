package tools

import (
	"context"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/store"
)

func sectionTools(d deps) []*Descriptor {
	const domain = "section"
	fields := []Param{
		{Name: "name", Type: TypeString, Required: true, Description: "Section name, unique"},
		{Name: "teacher_name", Type: TypeString, Required: true, Description: "Name of the teacher in charge"},
	}
	teacher := ref{param: "teacher_name", kind: store.KindTeacher, column: "teacher_id"}
	readers := Allow(unauthorized, everyone...)

	return []*Descriptor{
		{
			Name:        "create_section",
			Domain:      domain,
			Description: "Create a section led by an existing teacher.",
			Params:      fields,
			Gate:        Allow("Only admins can create sections", adminOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, "name")
				if res, ok := d.resolveRefs(ctx, args, rec, teacher); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindSection, rec)
				if err != nil {
					return FromError(store.KindSection, err)
				}
				return Done("Section created successfully", created)
			},
		},
		listTool(d, "list_sections", domain, store.KindSection, readers, "List all sections."),
		getTool(d, "get_section", domain, store.KindSection, "section_id", readers, "Show one section by id."),
		updateTool(d, "update_section", domain, store.KindSection, "section_id", optional(fields...), []ref{teacher},
			Allow("Only admins can update sections", adminOnly...),
			"Rename a section or change its teacher."),
		deleteTool(d, "delete_section", domain, store.KindSection, "section_id",
			Allow("Only admins can delete sections", adminOnly...), "Delete a section by id."),
	}
}
