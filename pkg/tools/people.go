package tools

import (
	"context"

	"github.com/jllopis/campusdesk/pkg/core"
	"github.com/jllopis/campusdesk/pkg/store"
)

func studentTools(d deps) []*Descriptor {
	const domain = "student"
	fields := []Param{
		{Name: "name", Type: TypeString, Required: true, Description: "Full name"},
		{Name: "username", Type: TypeString, Required: true, Description: "Login name, unique"},
		{Name: "email", Type: TypeString, Required: true, Description: "Email address, unique"},
		{Name: "section_name", Type: TypeString, Required: true, Description: "Section the student belongs to"},
	}
	password := Param{Name: "password", Type: TypeString, Required: true, Description: "Initial password"}
	section := ref{param: "section_name", kind: store.KindSection, column: "section_id"}
	readers := Allow("Only admins and teachers can view students", staff...)

	create := append(append([]Param(nil), fields...), password)
	return []*Descriptor{
		{
			Name:        "create_student",
			Domain:      domain,
			Description: "Register a student in an existing section.",
			Params:      create,
			Gate:        Allow("Only admins can create students", adminOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(create, "name", "username", "email", "password")
				if res, ok := d.resolveRefs(ctx, args, rec, section); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindStudent, rec)
				if err != nil {
					return FromError(store.KindStudent, err)
				}
				return Done("Student created successfully", created)
			},
		},
		listTool(d, "list_students", domain, store.KindStudent, readers, "List all students."),
		getTool(d, "get_student", domain, store.KindStudent, "student_id", readers, "Show one student by id."),
		updateTool(d, "update_student", domain, store.KindStudent, "student_id", optional(fields...), []ref{section},
			Allow("Only admins can update students", adminOnly...),
			"Change a student's details. Only the supplied fields change."),
		deleteTool(d, "delete_student", domain, store.KindStudent, "student_id",
			Allow("Only admins can delete students", adminOnly...), "Delete a student by id."),
	}
}

func teacherTools(d deps) []*Descriptor {
	const domain = "teacher"
	fields := []Param{
		{Name: "name", Type: TypeString, Required: true, Description: "Full name"},
		{Name: "username", Type: TypeString, Required: true, Description: "Login name, unique"},
		{Name: "email", Type: TypeString, Required: true, Description: "Email address, unique"},
		{Name: "subject_name", Type: TypeString, Description: "Main subject taught"},
	}
	password := Param{Name: "password", Type: TypeString, Required: true, Description: "Initial password"}
	names := []string{"name", "username", "email", "subject_name"}

	create := append(append([]Param(nil), fields...), password)
	return []*Descriptor{
		{
			Name:        "create_teacher",
			Domain:      domain,
			Description: "Register a teacher.",
			Params:      create,
			Gate:        Allow("Only admins can create teachers", adminOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(create, append(names, "password")...)
				created, err := d.store.Create(ctx, store.KindTeacher, rec)
				if err != nil {
					return FromError(store.KindTeacher, err)
				}
				return Done("Teacher created successfully", created)
			},
		},
		listTool(d, "list_teachers", domain, store.KindTeacher,
			Allow("Only admins can view all teachers", adminOnly...), "List all teachers."),
		getTool(d, "get_teacher", domain, store.KindTeacher, "teacher_id",
			Allow(unauthorized, staff...), "Show one teacher by id."),
		updateTool(d, "update_teacher", domain, store.KindTeacher, "teacher_id", optional(fields...), nil,
			Allow("Only admins can update teachers", adminOnly...),
			"Change a teacher's details. Only the supplied fields change."),
		deleteTool(d, "delete_teacher", domain, store.KindTeacher, "teacher_id",
			Allow("Only admins can delete teachers", adminOnly...), "Delete a teacher by id."),
	}
}
