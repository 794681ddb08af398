package tools

import (
	"context"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/store"
)

func eventTools(d deps) []*Descriptor {
	const domain = "event"
	fields := []Param{
		{Name: "title", Type: TypeString, Required: true, Description: "Event title, unique"},
		{Name: "event_date", Type: TypeDate, Required: true, Description: "Event date, YYYY-MM-DD"},
		{Name: "description", Type: TypeString, Description: "What the event is about"},
		{Name: "event_time", Type: TypeString, Description: "Start time, HH:MM"},
	}
	names := []string{"title", "event_date", "description", "event_time"}
	readers := Allow(unauthorized, everyone...)

	return []*Descriptor{
		{
			Name:        "create_event",
			Domain:      domain,
			Description: "Schedule an event. The logged-in admin is recorded as its organizer.",
			Params:      fields,
			Gate:        Allow("Only admins can create events", adminOnly...),
			Handler: func(ctx context.Context, sc *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, names...)
				rec["admin_id"] = sc.IdentityID()
				created, err := d.store.Create(ctx, store.KindEvent, rec)
				if err != nil {
					return FromError(store.KindEvent, err)
				}
				return Done("Event created successfully", created)
			},
		},
		listTool(d, "list_events", domain, store.KindEvent, readers, "List all events."),
		getTool(d, "get_event", domain, store.KindEvent, "event_id", readers, "Show one event by id."),
		updateTool(d, "update_event", domain, store.KindEvent, "event_id", optional(fields...), nil,
			Allow("Only admins can update events", adminOnly...),
			"Change an event. Only the supplied fields change."),
		deleteTool(d, "delete_event", domain, store.KindEvent, "event_id",
			Allow("Only admins can delete events", adminOnly...), "Delete an event by id."),
	}
}
