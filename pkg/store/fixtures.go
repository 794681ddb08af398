package store

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Fixtures maps a kind to the records to create, e.g.
//
//	teacher:
//	  - {name: Ms. Rivera, username: rivera, email: rivera@school.test, password: secret}
//	section:
//	  - {name: Section A, teacher_id: 1}
type Fixtures map[Kind][]Fields

// DecodeFixtures parses a YAML fixture document.
func DecodeFixtures(r io.Reader) (Fixtures, error) {
	var fx Fixtures
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		if err == io.EOF {
			return Fixtures{}, nil
		}
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	for kind := range fx {
		if _, ok := tables[kind]; !ok {
			return nil, fmt.Errorf("decode fixtures: unknown kind %q", kind)
		}
	}
	return fx, nil
}

// Load creates the fixture records in dependency order and returns the
// number of records created.
func (fx Fixtures) Load(ctx context.Context, s Store) (int, error) {
	created := 0
	for _, kind := range Kinds() {
		for i, fields := range fx[kind] {
			if _, err := s.Create(ctx, kind, normalizeYAML(fields)); err != nil {
				return created, fmt.Errorf("fixture %s[%d]: %w", kind, i, err)
			}
			created++
		}
	}
	return created, nil
}

// normalizeYAML converts yaml.v3 scalar types to the ones database/sql binds.
func normalizeYAML(fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		switch n := v.(type) {
		case int:
			out[k] = int64(n)
		default:
			out[k] = v
		}
	}
	return out
}
