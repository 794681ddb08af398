package tools

import (
	"context"
	"time"

	"github.com/jllopis/campusdesk/pkg/core"
	kerrors "github.com/jllopis/campusdesk/pkg/errors"
	"github.com/jllopis/campusdesk/pkg/store"
)

var (
	examTypes          = []string{"midterm", "final", "quiz", "assignment"}
	attendanceStatuses = []string{"present", "absent", "late"}
)

var (
	studentRef = ref{param: "student_name", kind: store.KindStudent, column: "student_id"}
	subjectRef = ref{param: "subject_name", kind: store.KindSubject, column: "subject_id"}
)

func resultTools(d deps) []*Descriptor {
	const domain = "result"
	fields := []Param{
		{Name: "subject_name", Type: TypeString, Required: true, Description: "Name of the subject"},
		{Name: "student_name", Type: TypeString, Required: true, Description: "Name of the student"},
		{Name: "total_marks", Type: TypeDecimal, Required: true, Description: "Maximum marks of the exam"},
		{Name: "obtained_marks", Type: TypeDecimal, Required: true, Description: "Marks the student obtained"},
		{Name: "exam_type", Type: TypeString, Required: true, Enum: examTypes, Description: "Kind of exam"},
		{Name: "remarks", Type: TypeString, Description: "Teacher remarks"},
	}
	viewers := Allow(unauthorized, staff...)

	return []*Descriptor{
		{
			Name:        "add_result",
			Domain:      domain,
			Description: "Record an exam result. The letter grade is derived from the marks.",
			Params:      fields,
			Gate:        Allow("Only teachers can add results", teacherOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(fields, "total_marks", "obtained_marks", "exam_type", "remarks")
				if res, ok := d.resolveRefs(ctx, args, rec, subjectRef, studentRef); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindResult, rec)
				if err != nil {
					return FromError(store.KindResult, err)
				}
				return Done("Result added successfully", created)
			},
		},
		listTool(d, "list_results", domain, store.KindResult, viewers, "List all results."),
		getTool(d, "get_result", domain, store.KindResult, "result_id", viewers, "Show one result by id."),
		updateTool(d, "update_result", domain, store.KindResult, "result_id",
			optional(fields[3], fields[5]), nil,
			Allow("Only teachers can update results", teacherOnly...),
			"Correct the obtained marks or remarks of a result. The grade follows the marks."),
		deleteTool(d, "delete_result", domain, store.KindResult, "result_id",
			Allow("Only teachers can delete results", teacherOnly...), "Delete a result by id."),
	}
}

func attendanceTools(d deps) []*Descriptor {
	const domain = "attendance"
	pair := []Param{
		{Name: "student_name", Type: TypeString, Required: true, Description: "Name of the student"},
		{Name: "subject_name", Type: TypeString, Required: true, Description: "Name of the subject"},
	}
	status := Param{Name: "status", Type: TypeString, Default: "present", Enum: attendanceStatuses, Description: "Attendance status"}
	date := Param{Name: "date", Type: TypeDate, Description: "Class date, YYYY-MM-DD; today when omitted"}
	mark := append(append([]Param(nil), pair...), status, date)
	update := append(append([]Param(nil), pair...), optional(status, date)...)
	viewers := Allow(unauthorized, staff...)

	return []*Descriptor{
		{
			Name:        "mark_attendance",
			Domain:      domain,
			Description: "Mark a student's attendance for a subject.",
			Params:      mark,
			Gate:        Allow("Only teachers can mark attendance", teacherOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				rec := args.Patch(mark, "status", "date")
				if _, ok := rec["date"]; !ok {
					rec["date"] = today()
				}
				rec["time"] = time.Now().Format(time.TimeOnly)
				if res, ok := d.resolveRefs(ctx, args, rec, studentRef, subjectRef); !ok {
					return res
				}
				created, err := d.store.Create(ctx, store.KindAttendance, rec)
				if err != nil {
					return FromError(store.KindAttendance, err)
				}
				return Done("Attendance marked successfully", created)
			},
		},
		listTool(d, "list_attendance", domain, store.KindAttendance, viewers, "List all attendance records."),
		filteredList(d, "list_attendance_by_student", domain, store.KindAttendance, studentRef, viewers,
			"List the attendance records of one student."),
		filteredList(d, "list_attendance_by_subject", domain, store.KindAttendance, subjectRef, viewers,
			"List the attendance records of one subject."),
		{
			Name:        "update_attendance",
			Domain:      domain,
			Description: "Change the most recent attendance record of a student in a subject.",
			Params:      update,
			Gate:        Allow("Only teachers can update attendance", teacherOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				id, res, ok := d.latestAttendance(ctx, args)
				if !ok {
					return res
				}
				rec, err := d.store.Update(ctx, store.KindAttendance, id, args.Patch(update, "status", "date"))
				if err != nil {
					return FromError(store.KindAttendance, err)
				}
				return Done("Attendance updated successfully", rec)
			},
		},
		{
			Name:        "delete_attendance",
			Domain:      domain,
			Description: "Delete the most recent attendance record of a student in a subject.",
			Params:      pair,
			Gate:        Allow("Only teachers can delete attendance records", teacherOnly...),
			Handler: func(ctx context.Context, _ *core.SessionContext, args Args) Result {
				id, res, ok := d.latestAttendance(ctx, args)
				if !ok {
					return res
				}
				if err := d.store.Delete(ctx, store.KindAttendance, id); err != nil {
					return FromError(store.KindAttendance, err)
				}
				return Done("Attendance record deleted successfully", nil)
			},
		},
	}
}

// latestAttendance finds the newest attendance record for the student and
// subject named in args.
func (d deps) latestAttendance(ctx context.Context, args Args) (int64, Result, bool) {
	where := store.Fields{}
	if res, ok := d.resolveRefs(ctx, args, where, studentRef, subjectRef); !ok {
		return 0, res, false
	}
	records, err := d.store.List(ctx, store.KindAttendance, store.Filter{
		Where:   where,
		OrderBy: "date",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		return 0, FromError(store.KindAttendance, err), false
	}
	if len(records) == 0 {
		return 0, Failed(kerrors.CodeEntityNotFound, "Attendance record not found for this student and subject"), false
	}
	return records[0].ID(), Result{}, true
}
