// Package store is the record service the tool catalog talks to. Each tool
// handler makes one narrow call against the Store interface; the dispatcher
// never sees records beyond the opaque maps returned here.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a record type.
type Kind string

const (
	KindAdmin        Kind = "admin"
	KindTeacher      Kind = "teacher"
	KindStudent      Kind = "student"
	KindSection      Kind = "section"
	KindCourse       Kind = "course"
	KindSubject      Kind = "subject"
	KindEnrollment   Kind = "enrollment"
	KindAssignment   Kind = "assignment"
	KindSubmission   Kind = "submission"
	KindAttendance   Kind = "attendance"
	KindResult       Kind = "result"
	KindAnnouncement Kind = "announcement"
	KindEvent        Kind = "event"
)

// Kinds returns every record kind in dependency order: a kind only
// references kinds listed before it.
func Kinds() []Kind {
	return []Kind{
		KindAdmin, KindTeacher, KindSection, KindStudent, KindCourse,
		KindSubject, KindEnrollment, KindAssignment, KindSubmission,
		KindAttendance, KindResult, KindAnnouncement, KindEvent,
	}
}

// Record is a stored row keyed by column name. "id" is always present.
type Record map[string]any

// ID returns the record id or 0.
func (r Record) ID() int64 {
	id, _ := r["id"].(int64)
	return id
}

// Fields carries column values for Create and the sparse patch for Update.
// Keys absent from the map are left untouched by Update.
type Fields map[string]any

// Filter narrows List queries.
type Filter struct {
	Where   map[string]any
	OrderBy string
	Desc    bool
	Limit   int
}

// Store is the record service boundary.
type Store interface {
	Create(ctx context.Context, kind Kind, fields Fields) (Record, error)
	Get(ctx context.Context, kind Kind, id int64) (Record, error)
	List(ctx context.Context, kind Kind, filter Filter) ([]Record, error)
	Update(ctx context.Context, kind Kind, id int64, patch Fields) (Record, error)
	Delete(ctx context.Context, kind Kind, id int64) error
	// FindByName returns the first record (lowest id) whose name column
	// equals name exactly.
	FindByName(ctx context.Context, kind Kind, name string) (Record, error)
}

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned on uniqueness or reference violations.
	ErrConflict = errors.New("record conflict")
	// ErrInvalid is returned when fields are rejected before or by the schema.
	ErrInvalid = errors.New("invalid record")
)

// ConstraintError describes which column broke which rule.
type ConstraintError struct {
	Kind   Kind
	Column string
	Rule   string
	Err    error
}

func (e *ConstraintError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %s constraint failed", e.Kind, e.Rule)
	}
	return fmt.Sprintf("%s.%s: %s constraint failed", e.Kind, e.Column, e.Rule)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
