package tools

import (
	"context"
	"strings"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/store"
)

// selfServiceTools read the logged-in student's own records. The student id
// always comes from the session.
func selfServiceTools(d deps) []*Descriptor {
	own := func(name string, kind store.Kind, description string) *Descriptor {
		return &Descriptor{
			Name:        name,
			Domain:      "self",
			Description: description,
			Gate:        Allow("Only students can view their own records", studentOnly...),
			Handler: func(ctx context.Context, sc *core.SessionContext, _ Args) Result {
				records, err := d.store.List(ctx, kind, store.Filter{
					Where: map[string]any{"student_id": sc.IdentityID()},
				})
				return listing(kind, records, err)
			},
		}
	}
	return []*Descriptor{
		own("get_my_attendance", store.KindAttendance, "Show your attendance records."),
		own("get_my_results", store.KindResult, "Show your exam results."),
		own("get_my_submissions", store.KindSubmission, "Show your assignment submissions."),
	}
}

var lookupKinds = []string{
	string(store.KindTeacher), string(store.KindStudent), string(store.KindSection),
	string(store.KindCourse), string(store.KindSubject), string(store.KindAssignment),
	string(store.KindAnnouncement), string(store.KindEvent),
}

// lookupTools expose name resolution so the assistant can confirm a
// prerequisite exists before creating something that depends on it.
func lookupTools(d deps) []*Descriptor {
	return []*Descriptor{{
		Name:        "check_entity_exists",
		Domain:      "lookup",
		Description: "Check whether a " + strings.Join(lookupKinds, ", ") + " with the exact name exists and return its id.",
		Params: []Param{
			{Name: "kind", Type: TypeString, Required: true, Enum: lookupKinds, Description: "Kind of record"},
			{Name: "name", Type: TypeString, Required: true, Description: "Exact name or title"},
		},
		Gate: Allow(unauthorized, staff...),
		Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
			kind := store.Kind(args.String("kind"))
			id, err := d.resolve.Resolve(ctx, kind, args.String("name"))
			if err != nil {
				return FromError(kind, err)
			}
			return OK(map[string]any{"kind": string(kind), "id": id, "exists": true})
		},
	}}
}
