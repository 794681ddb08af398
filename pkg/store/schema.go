package store

type table struct {
	name       string
	columns    []string
	nameColumn string
	hidden     map[string]bool
	credential bool
	stamped    string
}

var tables = map[Kind]table{
	KindAdmin: {
		name:       "admins",
		columns:    []string{"name", "username", "email", "password_hash"},
		nameColumn: "name",
		hidden:     map[string]bool{"password_hash": true},
		credential: true,
	},
	KindTeacher: {
		name:       "teachers",
		columns:    []string{"name", "username", "email", "password_hash", "subject_name"},
		nameColumn: "name",
		hidden:     map[string]bool{"password_hash": true},
		credential: true,
	},
	KindSection: {
		name:       "sections",
		columns:    []string{"name", "teacher_id"},
		nameColumn: "name",
	},
	KindStudent: {
		name:       "students",
		columns:    []string{"name", "username", "email", "password_hash", "section_id"},
		nameColumn: "name",
		hidden:     map[string]bool{"password_hash": true},
		credential: true,
	},
	KindCourse: {
		name:       "courses",
		columns:    []string{"name", "course_code", "description", "teacher_id"},
		nameColumn: "name",
	},
	KindSubject: {
		name:       "subjects",
		columns:    []string{"name", "teacher_id", "course_id"},
		nameColumn: "name",
	},
	KindEnrollment: {
		name:    "enrollments",
		columns: []string{"student_id", "course_id", "enrollment_date", "status", "grade"},
	},
	KindAssignment: {
		name:       "assignments",
		columns:    []string{"title", "description", "due_date", "total_marks", "subject_id", "teacher_id", "created_at"},
		nameColumn: "title",
		stamped:    "created_at",
	},
	KindSubmission: {
		name:    "submissions",
		columns: []string{"student_id", "assignment_id", "submission_text", "file_path", "submitted_at", "marks", "feedback"},
		stamped: "submitted_at",
	},
	KindAttendance: {
		name:    "attendance",
		columns: []string{"student_id", "subject_id", "date", "time", "status"},
	},
	KindResult: {
		name:    "results",
		columns: []string{"student_id", "subject_id", "total_marks", "obtained_marks", "grade", "exam_type", "remarks"},
	},
	KindAnnouncement: {
		name:       "announcements",
		columns:    []string{"title", "content", "teacher_id", "target_audience", "section_id", "created_at"},
		nameColumn: "title",
		stamped:    "created_at",
	},
	KindEvent: {
		name:       "events",
		columns:    []string{"title", "description", "event_date", "event_time", "admin_id", "created_at"},
		nameColumn: "title",
		stamped:    "created_at",
	},
}

func (t table) has(column string) bool {
	if column == "id" {
		return true
	}
	for _, c := range t.columns {
		if c == column {
			return true
		}
	}
	return false
}

func (t table) visible() []string {
	out := make([]string, 0, len(t.columns)+1)
	out = append(out, "id")
	for _, c := range t.columns {
		if !t.hidden[c] {
			out = append(out, c)
		}
	}
	return out
}

func kindForTable(name string) Kind {
	for kind, t := range tables {
		if t.name == name {
			return kind
		}
	}
	return Kind(name)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS admins (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS teachers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	subject_name TEXT
);
CREATE TABLE IF NOT EXISTS sections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	teacher_id INTEGER REFERENCES teachers(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS students (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL DEFAULT '',
	section_id INTEGER REFERENCES sections(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS courses (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	course_code TEXT NOT NULL UNIQUE,
	description TEXT,
	teacher_id INTEGER REFERENCES teachers(id) ON DELETE SET NULL
);
CREATE TABLE IF NOT EXISTS subjects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	teacher_id INTEGER REFERENCES teachers(id) ON DELETE SET NULL,
	course_id INTEGER REFERENCES courses(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS enrollments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	enrollment_date TEXT,
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed', 'dropped')),
	grade TEXT
);
CREATE TABLE IF NOT EXISTS assignments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT,
	due_date TEXT,
	total_marks REAL NOT NULL DEFAULT 100 CHECK (total_marks > 0),
	subject_id INTEGER REFERENCES subjects(id) ON DELETE CASCADE,
	teacher_id INTEGER REFERENCES teachers(id) ON DELETE SET NULL,
	created_at TEXT
);
CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	assignment_id INTEGER NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
	submission_text TEXT,
	file_path TEXT,
	submitted_at TEXT,
	marks REAL,
	feedback TEXT
);
CREATE TABLE IF NOT EXISTS attendance (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	subject_id INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	date TEXT NOT NULL,
	time TEXT,
	status TEXT NOT NULL DEFAULT 'present' CHECK (status IN ('present', 'absent', 'late'))
);
CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
	subject_id INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	total_marks REAL NOT NULL CHECK (total_marks > 0),
	obtained_marks REAL NOT NULL CHECK (obtained_marks >= 0),
	grade TEXT,
	exam_type TEXT NOT NULL CHECK (exam_type IN ('midterm', 'final', 'quiz', 'assignment')),
	remarks TEXT
);
CREATE TABLE IF NOT EXISTS announcements (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	teacher_id INTEGER REFERENCES teachers(id) ON DELETE SET NULL,
	target_audience TEXT NOT NULL DEFAULT 'all',
	section_id INTEGER REFERENCES sections(id) ON DELETE SET NULL,
	created_at TEXT
);
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE,
	description TEXT,
	event_date TEXT NOT NULL,
	event_time TEXT,
	admin_id INTEGER REFERENCES admins(id) ON DELETE SET NULL,
	created_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_attendance_student_subject ON attendance(student_id, subject_id);
CREATE INDEX IF NOT EXISTS idx_results_student ON results(student_id);
CREATE INDEX IF NOT EXISTS idx_submissions_assignment ON submissions(assignment_id);
`
