package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite persists records in a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema.
// An empty path or ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*SQLite, error) {
	memory := path == "" || path == ":memory:"
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if memory {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if memory {
		// Every connection to :memory: is a distinct database.
		db.SetMaxOpenConns(1)
	}
	s, err := NewSQLite(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an existing handle and ensures the schema.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// DB exposes the handle so sibling stores (audit) can share it.
func (s *SQLite) DB() *sql.DB { return s.db }

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func lookup(kind Kind) (table, error) {
	t, ok := tables[kind]
	if !ok {
		return table{}, invalidf("unknown kind %q", kind)
	}
	return t, nil
}

// Create inserts a record and returns it as stored.
func (s *SQLite) Create(ctx context.Context, kind Kind, fields Fields) (Record, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	values, err := s.prepare(ctx, kind, t, 0, fields, true)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, invalidf("no fields for %s", kind)
	}

	cols := sortedKeys(values)
	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		args[i] = values[c]
		marks[i] = "?"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, translate(kind, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, kind, id)
}

// Get returns a single record by id.
func (s *SQLite) Get(ctx context.Context, kind Kind, id int64) (Record, error) {
	records, err := s.List(ctx, kind, Filter{Where: map[string]any{"id": id}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	return records[0], nil
}

// List returns records matching filter ordered by filter.OrderBy then id.
func (s *SQLite) List(ctx context.Context, kind Kind, filter Filter) ([]Record, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	cols := t.visible()
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), t.name)

	var args []any
	if len(filter.Where) > 0 {
		keys := make([]string, 0, len(filter.Where))
		for k := range filter.Where {
			if !t.has(k) || t.hidden[k] {
				return nil, invalidf("unknown column %s.%s", kind, k)
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		clauses := make([]string, len(keys))
		for i, k := range keys {
			clauses[i] = k + " = ?"
			args = append(args, filter.Where[k])
		}
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}
	switch {
	case filter.OrderBy == "" || filter.OrderBy == "id":
		query += " ORDER BY id " + dir
	case t.has(filter.OrderBy) && !t.hidden[filter.OrderBy]:
		query += fmt.Sprintf(" ORDER BY %s %s, id %s", filter.OrderBy, dir, dir)
	default:
		return nil, invalidf("unknown column %s.%s", kind, filter.OrderBy)
	}
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(Record, len(cols))
		for i, c := range cols {
			if b, ok := dest[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = dest[i]
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Update applies a sparse patch: only keys present in patch are written.
func (s *SQLite) Update(ctx context.Context, kind Kind, id int64, patch Fields) (Record, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, kind, id); err != nil {
		return nil, err
	}
	values, err := s.prepare(ctx, kind, t, id, patch, false)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return s.Get(ctx, kind, id)
	}

	cols := sortedKeys(values)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	args = append(args, id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.name, strings.Join(sets, ", "))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return nil, translate(kind, err)
	}
	return s.Get(ctx, kind, id)
}

// Delete removes a record by id.
func (s *SQLite) Delete(ctx context.Context, kind Kind, id int64) error {
	t, err := lookup(kind)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", t.name), id)
	if err != nil {
		return translate(kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
	}
	return nil
}

// FindByName returns the lowest-id record whose name column equals name.
func (s *SQLite) FindByName(ctx context.Context, kind Kind, name string) (Record, error) {
	t, err := lookup(kind)
	if err != nil {
		return nil, err
	}
	if t.nameColumn == "" {
		return nil, invalidf("%s records have no name", kind)
	}
	records, err := s.List(ctx, kind, Filter{Where: map[string]any{t.nameColumn: name}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)
	}
	return records[0], nil
}

// prepare validates column names and applies the per-kind derivations:
// password hashing, creation stamps and result grades.
func (s *SQLite) prepare(ctx context.Context, kind Kind, t table, id int64, fields Fields, creating bool) (map[string]any, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		switch {
		case k == "password" && t.credential:
			hash, err := HashPassword(fmt.Sprint(v))
			if err != nil {
				return nil, err
			}
			values["password_hash"] = hash
		case k == "id" && !creating:
			return nil, invalidf("id cannot be patched")
		case k == "password_hash" || !t.has(k):
			return nil, invalidf("unknown column %s.%s", kind, k)
		default:
			values[k] = v
		}
	}
	if creating && t.stamped != "" {
		if _, ok := values[t.stamped]; !ok {
			values[t.stamped] = s.now().UTC().Format(time.RFC3339)
		}
	}
	if kind == KindResult {
		if err := s.deriveGrade(ctx, id, values, creating); err != nil {
			return nil, err
		}
	}
	return values, nil
}

func (s *SQLite) deriveGrade(ctx context.Context, id int64, values map[string]any, creating bool) error {
	_, hasTotal := values["total_marks"]
	_, hasObtained := values["obtained_marks"]
	if !creating && !hasTotal && !hasObtained {
		return nil
	}
	total, obtained := values["total_marks"], values["obtained_marks"]
	if !creating {
		current, err := s.Get(ctx, KindResult, id)
		if err != nil {
			return err
		}
		if !hasTotal {
			total = current["total_marks"]
		}
		if !hasObtained {
			obtained = current["obtained_marks"]
		}
	}
	grade, err := Grade(obtained, total)
	if err != nil {
		return err
	}
	values["grade"] = grade
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// translate maps SQLite constraint failures onto the package sentinels.
func translate(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	code := 0
	var se *sqlite.Error
	if errors.As(err, &se) {
		code = se.Code()
	}
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		strings.Contains(msg, "UNIQUE constraint failed"):
		return constraint(kind, "unique", msg, ErrConflict)
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY || strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return constraint(kind, "reference", msg, ErrConflict)
	case code == sqlite3.SQLITE_CONSTRAINT_CHECK || strings.Contains(msg, "CHECK constraint failed"):
		return constraint(kind, "check", msg, ErrInvalid)
	case code == sqlite3.SQLITE_CONSTRAINT_NOTNULL || strings.Contains(msg, "NOT NULL constraint failed"):
		return constraint(kind, "required", msg, ErrInvalid)
	default:
		return err
	}
}

// constraint extracts "table.column" from messages such as
// "UNIQUE constraint failed: announcements.title".
func constraint(kind Kind, rule, msg string, sentinel error) error {
	ce := &ConstraintError{Kind: kind, Rule: rule, Err: sentinel}
	if i := strings.LastIndex(msg, "failed: "); i >= 0 {
		target := strings.TrimSpace(msg[i+len("failed: "):])
		if j := strings.IndexAny(target, " ,)("); j >= 0 {
			target = target[:j]
		}
		if tbl, col, ok := strings.Cut(target, "."); ok {
			ce.Kind = kindForTable(tbl)
			ce.Column = col
		}
	}
	return ce
}
