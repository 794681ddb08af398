package tools

import (
	"context"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/store"
)

func assignmentTools(d deps) []*Descriptor {
	const domain = "assignment"
	fields := []Param{
		{Name: "title", Type: TypeString, Required: true, Description: "Assignment title"},
		{Name: "description", Type: TypeString, Required: true, Description: "What students must do"},
		{Name: "due_date", Type: TypeDate, Required: true, Description: "Due date, YYYY-MM-DD"},
		{Name: "subject_name", Type: TypeString, Required: true, Description: "Name of the subject"},
		{Name: "total_marks", Type: TypeDecimal, Default: 100.0, Description: "Maximum marks"},
	}
	direct := []string{"title", "description", "due_date", "total_marks"}
	readers := Allow(unauthorized, everyone...)

	return []*Descriptor{
		{
			Name:        "create_assignment",
			Domain:      domain,
			Description: "Create an assignment for a subject. The logged-in teacher is recorded as its author.",
			Params:      fields,
			Gate:        Allow("Only teachers can create assignments", teacherOnly...),
			Handler: func(ctx context.Context, sc *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, direct...)
				rec["teacher_id"] = sc.IdentityID()
				if res, ok := d.resolveRefs(ctx, args, rec, subjectRef); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindAssignment, rec)
				if err != nil {
					return FromError(store.KindAssignment, err)
				}
				return Done("Assignment created successfully", created)
			},
		},
		listTool(d, "list_assignments", domain, store.KindAssignment, readers, "List all assignments."),
		getTool(d, "get_assignment", domain, store.KindAssignment, "assignment_id", readers, "Show one assignment by id."),
		updateTool(d, "update_assignment", domain, store.KindAssignment, "assignment_id",
			optional(fields[0], fields[1], fields[2], fields[4]), nil,
			Allow("Only teachers can update assignments", teacherOnly...),
			"Change an assignment. Only the supplied fields change."),
		deleteTool(d, "delete_assignment", domain, store.KindAssignment, "assignment_id",
			Allow("Only teachers can delete assignments", teacherOnly...), "Delete an assignment by id."),
	}
}

func submissionTools(d deps) []*Descriptor {
	const domain = "submission"
	submit := []Param{
		idParam("assignment_id", store.KindAssignment),
		{Name: "submission_text", Type: TypeString, Required: true, Description: "The student's answer"},
		{Name: "file_path", Type: TypeString, Description: "Path of an attached file"},
	}
	grading := []Param{
		{Name: "submission_text", Type: TypeString, Description: "Corrected submission text"},
		{Name: "feedback", Type: TypeString, Description: "Teacher feedback"},
		{Name: "marks", Type: TypeDecimal, Description: "Marks awarded"},
	}
	viewers := Allow(unauthorized, staff...)

	return []*Descriptor{
		{
			Name:        "submit_assignment",
			Domain:      domain,
			Description: "Submit work for an assignment as the logged-in student.",
			Params:      submit,
			Gate:        Allow("Only students can submit assignments", studentOnly...),
			Handler: func(ctx context.Context, sc *core.SessionContext, args Args) Result {
				if _, err := d.store.Get(ctx, store.KindAssignment, args.Int("assignment_id")); err != nil {
					return FromError(store.KindAssignment, err)
				}
				rec := args.Patch(submit, "assignment_id", "submission_text", "file_path")
				rec["student_id"] = sc.IdentityID()
				created, err := d.store.Create(ctx, store.KindSubmission, rec)
				if err != nil {
					return FromError(store.KindSubmission, err)
				}
				return Done("Assignment submitted successfully", created)
			},
		},
		filteredList(d, "list_submissions_by_student", domain, store.KindSubmission, studentRef, viewers,
			"List the submissions of one student."),
		{
			Name:        "list_submissions_by_assignment",
			Domain:      domain,
			Description: "List the submissions made for one assignment.",
			Params:      []Param{idParam("assignment_id", store.KindAssignment)},
			Gate:        viewers,
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				id := args.Int("assignment_id")
				if _, err := d.store.Get(ctx, store.KindAssignment, id); err != nil {
					return FromError(store.KindAssignment, err)
				}
				records, err := d.store.List(ctx, store.KindSubmission, store.Filter{Where: map[string]any{"assignment_id": id}})
				return listing(store.KindSubmission, records, err)
			},
		},
		updateTool(d, "update_submission", domain, store.KindSubmission, "submission_id", grading, nil,
			Allow("Only teachers can update submissions", teacherOnly...),
			"Grade a submission or attach feedback. Only the supplied fields change."),
	}
}
