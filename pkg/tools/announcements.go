package tools

import (
	"context"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/store"
)

var audiences = []string{"all", "students", "teachers", "section"}

func announcementTools(d deps) []*Descriptor {
	const domain = "announcement"
	byTitle := Param{Name: "announcement_title", Type: TypeString, Required: true, Description: "Exact title of the announcement"}
	fields := []Param{
		{Name: "title", Type: TypeString, Required: true, Description: "Announcement title, unique"},
		{Name: "content", Type: TypeString, Required: true, Description: "Body text"},
		{Name: "target_audience", Type: TypeString, Default: "all", Enum: audiences, Description: "Who the announcement is for"},
		{Name: "section_name", Type: TypeString, Description: "Section the announcement is limited to"},
	}
	sectionRef := ref{param: "section_name", kind: store.KindSection, column: "section_id"}

	return []*Descriptor{
		{
			Name:        "create_announcement",
			Domain:      domain,
			Description: "Publish an announcement. The logged-in teacher is recorded as its author.",
			Params:      fields,
			Gate:        Allow("Only teachers can create announcements", teacherOnly...),
			Handler: func(ctx context.Context, sc *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, "title", "content", "target_audience")
				rec["teacher_id"] = sc.IdentityID()
				if res, ok := d.resolveRefs(ctx, args, rec, sectionRef); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindAnnouncement, rec)
				if err != nil {
					return FromError(store.KindAnnouncement, err)
				}
				return Done("Announcement created successfully", created)
			},
		},
		listTool(d, "list_announcements", domain, store.KindAnnouncement,
			Allow(unauthorized, everyone...), "List all announcements."),
		{
			Name:        "get_announcement",
			Domain:      domain,
			Description: "Show one announcement by its title.",
			Params:      []Param{byTitle},
			Gate:        Allow(unauthorized, everyone...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec, err := d.resolve.Lookup(ctx, store.KindAnnouncement, args.String(byTitle.Name))
				if err != nil {
					return FromError(store.KindAnnouncement, err)
				}
				return OK(rec)
			},
		},
		{
			Name:        "update_announcement",
			Domain:      domain,
			Description: "Change an announcement found by its current title. Only the supplied fields change.",
			Params:      append([]Param{byTitle}, optional(fields...)...),
			Gate:        Allow("Only teachers can update announcements", teacherOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				id, err := d.resolve.Resolve(ctx, store.KindAnnouncement, args.String(byTitle.Name))
				if err != nil {
					return FromError(store.KindAnnouncement, err)
				}
				patch := args.Patch(fields, "title", "content", "target_audience")
				if res, ok := d.resolveRefs(ctx, args, patch, sectionRef); !ok {
					return res
				}
				rec, err := d.store.Update(ctx, store.KindAnnouncement, id, patch)
				if err != nil {
					return FromError(store.KindAnnouncement, err)
				}
				return Done("Announcement updated successfully", rec)
			},
		},
		{
			Name:        "delete_announcement",
			Domain:      domain,
			Description: "Delete an announcement by its title.",
			Params:      []Param{byTitle},
			Gate:        Allow("Only teachers can delete announcements", teacherOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				id, err := d.resolve.Resolve(ctx, store.KindAnnouncement, args.String(byTitle.Name))
				if err != nil {
					return FromError(store.KindAnnouncement, err)
				}
				if err := d.store.Delete(ctx, store.KindAnnouncement, id); err != nil {
					return FromError(store.KindAnnouncement, err)
				}
				return Done("Announcement deleted successfully", nil)
			},
		},
	}
}
