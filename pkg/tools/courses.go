package tools

import (
	"context"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/store"
)

var enrollmentStatuses = []string{"active", "completed", "dropped"}

func courseTools(d deps) []*Descriptor {
	const domain = "course"
	fields := []Param{
		{Name: "name", Type: TypeString, Required: true, Description: "Course name"},
		{Name: "course_code", Type: TypeString, Required: true, Description: "Course code, unique"},
		{Name: "teacher_name", Type: TypeString, Required: true, Description: "Name of the teacher running the course"},
		{Name: "description", Type: TypeString, Description: "Course summary"},
	}
	teacher := ref{param: "teacher_name", kind: store.KindTeacher, column: "teacher_id"}

	return []*Descriptor{
		{
			Name:        "create_course",
			Domain:      domain,
			Description: "Create a course run by an existing teacher.",
			Params:      fields,
			Gate:        Allow("Only admins can create courses", adminOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, "name", "course_code", "description")
				if res, ok := d.resolveRefs(ctx, args, rec, teacher); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindCourse, rec)
				if err != nil {
					return FromError(store.KindCourse, err)
				}
				return Done("Course created successfully", created)
			},
		},
		listTool(d, "list_courses", domain, store.KindCourse,
			Allow("Only admins can view all courses", adminOnly...), "List all courses."),
		getTool(d, "get_course", domain, store.KindCourse, "course_id",
			Allow(unauthorized, everyone...), "Show one course by id."),
		updateTool(d, "update_course", domain, store.KindCourse, "course_id", optional(fields...), []ref{teacher},
			Allow("Only admins can update courses", adminOnly...),
			"Change a course. Only the supplied fields change."),
		deleteTool(d, "delete_course", domain, store.KindCourse, "course_id",
			Allow("Only admins can delete courses", adminOnly...), "Delete a course by id."),
	}
}

func subjectTools(d deps) []*Descriptor {
	const domain = "subject"
	fields := []Param{
		{Name: "name", Type: TypeString, Required: true, Description: "Subject name"},
		{Name: "teacher_name", Type: TypeString, Required: true, Description: "Name of the teacher of the subject"},
		{Name: "course_name", Type: TypeString, Required: true, Description: "Name of the course the subject belongs to"},
	}
	// Teacher is resolved before course.
	refs := []ref{
		{param: "teacher_name", kind: store.KindTeacher, column: "teacher_id"},
		{param: "course_name", kind: store.KindCourse, column: "course_id"},
	}

	return []*Descriptor{
		{
			Name:        "create_subject",
			Domain:      domain,
			Description: "Create a subject within an existing course, taught by an existing teacher.",
			Params:      fields,
			Gate:        Allow("Only admins can create subjects", adminOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, "name")
				if res, ok := d.resolveRefs(ctx, args, rec, refs...); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindSubject, rec)
				if err != nil {
					return FromError(store.KindSubject, err)
				}
				return Done("Subject created successfully", created)
			},
		},
		listTool(d, "list_subjects", domain, store.KindSubject,
			Allow("Only admins can view all subjects", adminOnly...), "List all subjects."),
		getTool(d, "get_subject", domain, store.KindSubject, "subject_id",
			Allow(unauthorized, everyone...), "Show one subject by id."),
		updateTool(d, "update_subject", domain, store.KindSubject, "subject_id", optional(fields...), refs,
			Allow("Only admins can update subjects", adminOnly...),
			"Change a subject. Only the supplied fields change."),
		deleteTool(d, "delete_subject", domain, store.KindSubject, "subject_id",
			Allow("Only admins can delete subjects", adminOnly...), "Delete a subject by id."),
	}
}

func enrollmentTools(d deps) []*Descriptor {
	const domain = "enrollment"
	fields := []Param{
		{Name: "student_name", Type: TypeString, Required: true, Description: "Name of the student"},
		{Name: "course_name", Type: TypeString, Required: true, Description: "Name of the course"},
		{Name: "enrollment_date", Type: TypeDate, Description: "Enrollment date, YYYY-MM-DD; today when omitted"},
		{Name: "status", Type: TypeString, Default: "active", Enum: enrollmentStatuses, Description: "Enrollment status"},
		{Name: "grade", Type: TypeString, Description: "Final grade, if known"},
	}
	student := ref{param: "student_name", kind: store.KindStudent, column: "student_id"}
	course := ref{param: "course_name", kind: store.KindCourse, column: "course_id"}
	viewers := Allow("Only admins can view enrollments", adminOnly...)

	return []*Descriptor{
		{
			Name:        "enroll_student",
			Domain:      domain,
			Description: "Enroll an existing student in an existing course.",
			Params:      fields,
			Gate:        Allow("Only admins can enroll students", adminOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, "enrollment_date", "status", "grade")
				if _, ok := rec["enrollment_date"]; !ok {
					rec["enrollment_date"] = today()
				}
				if res, ok := d.resolveRefs(ctx, args, rec, student, course); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindEnrollment, rec)
				if err != nil {
					return FromError(store.KindEnrollment, err)
				}
				return Done("Student enrolled successfully", created)
			},
		},
		listTool(d, "list_enrollments", domain, store.KindEnrollment, viewers, "List all enrollments."),
		filteredList(d, "list_enrollments_by_student", domain, store.KindEnrollment, student, viewers,
			"List the enrollments of one student."),
		filteredList(d, "list_enrollments_by_course", domain, store.KindEnrollment, course, viewers,
			"List the enrollments of one course."),
		updateTool(d, "update_enrollment", domain, store.KindEnrollment, "enrollment_id",
			optional(fields[3], fields[4]), nil,
			Allow("Only admins can update enrollments", adminOnly...),
			"Change the status or grade of an enrollment."),
		deleteTool(d, "delete_enrollment", domain, store.KindEnrollment, "enrollment_id",
			Allow("Only admins can delete enrollments", adminOnly...), "Delete an enrollment by id."),
	}
}

// filteredList lists records of kind whose by.column matches the entity
// named by the by.param argument.
func filteredList(d deps, name, domain string, kind store.Kind, by ref, gate Gate, description string) *Descriptor {
	return &Descriptor{
		Name:        name,
		Domain:      domain,
		Description: description,
		Params: []Param{{
			Name: by.param, Type: TypeString, Required: true,
			Description: "Exact name of the " + string(by.kind),
		}},
		Gate: gate,
		Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
			id, err := d.resolve.Resolve(ctx, by.kind, args.String(by.param))
			if err != nil {
				return FromError(by.kind, err)
			}
			records, err := d.store.List(ctx, kind, store.Filter{Where: map[string]any{by.column: id}})
			return listing(kind, records, err)
		},
	}
}
