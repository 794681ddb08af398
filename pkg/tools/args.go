package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jllopis/campusdesk/pkg/store"
)

// Args holds the validated arguments of one tool call. Accessors assume
// the schema has already been checked; absent keys yield zero values.
type Args struct {
	values map[string]any
}

// ParseArgs decodes a JSON object. An empty string is an empty object.
func ParseArgs(raw string) (Args, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Args{values: map[string]any{}}, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return Args{}, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	return Args{values: values}, nil
}

// NewArgs wraps an already decoded argument map.
func NewArgs(values map[string]any) Args {
	if values == nil {
		values = map[string]any{}
	}
	return Args{values: values}
}

// Has reports whether name was supplied with a non-null value.
func (a Args) Has(name string) bool {
	v, ok := a.values[name]
	return ok && v != nil
}

func (a Args) String(name string) string {
	switch v := a.values[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func (a Args) Int(name string) int64 {
	switch v := a.values[name].(type) {
	case float64:
		return int64(math.Round(v))
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

func (a Args) Decimal(name string) decimal.Decimal {
	switch v := a.values[name].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case string:
		d, _ := decimal.NewFromString(v)
		return d
	default:
		return decimal.Zero
	}
}

// Float returns a decimal argument as the float64 the store persists.
func (a Args) Float(name string) float64 {
	return a.Decimal(name).InexactFloat64()
}

// Map returns a copy of the raw argument map.
func (a Args) Map() map[string]any {
	out := make(map[string]any, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// Patch builds a sparse store patch from the supplied arguments among
// names, converted per their declared type. Absent names are skipped.
func (a Args) Patch(params []Param, names ...string) store.Fields {
	types := make(map[string]ParamType, len(params))
	for _, p := range params {
		types[p.Name] = p.Type
	}
	patch := store.Fields{}
	for _, name := range names {
		if !a.Has(name) {
			continue
		}
		switch types[name] {
		case TypeInteger:
			patch[name] = a.Int(name)
		case TypeDecimal:
			patch[name] = a.Float(name)
		default:
			patch[name] = a.String(name)
		}
	}
	return patch
}

func (a Args) withDefaults(params []Param) Args {
	for _, p := range params {
		if p.Default == nil || a.Has(p.Name) {
			continue
		}
		a.values[p.Name] = p.Default
	}
	return a
}
