package tools

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ParamType is the declared type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeDecimal ParamType = "decimal"
	TypeDate    ParamType = "date"
)

// DateLayout is the wire format of date parameters.
const DateLayout = "2006-01-02"

// Param describes one named tool argument.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Default     any
	Description string
	Enum        []string
}

func (p Param) schema() map[string]any {
	prop := map[string]any{}
	switch p.Type {
	case TypeInteger:
		prop["type"] = "integer"
	case TypeDecimal:
		prop["type"] = "number"
	case TypeDate:
		prop["type"] = "string"
		prop["format"] = "date"
	default:
		prop["type"] = "string"
	}
	if p.Description != "" {
		prop["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		enum := make([]any, len(p.Enum))
		for i, v := range p.Enum {
			enum[i] = v
		}
		prop["enum"] = enum
	}
	if p.Default != nil {
		prop["default"] = p.Default
	}
	return prop
}

// buildSchema projects params into a JSON Schema object.
func buildSchema(params []Param) map[string]any {
	props := make(map[string]any, len(params))
	required := make([]any, 0)
	for _, p := range params {
		props[p.Name] = p.schema()
		if p.Required {
			required = append(required, p.Name)
		}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	return doc
}

// compileSchema compiles doc for argument validation. The document is
// round-tripped through JSON so every number is a float64.
func compileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var obj any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	url := name + ".json"
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, obj); err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	return sch, nil
}

// coerce converts loosely typed values (numbers sent as strings, dates
// with a time part) into the declared parameter types before validation.
func coerce(params []Param, values map[string]any) {
	for _, p := range params {
		v, ok := values[p.Name]
		if !ok {
			continue
		}
		if v == nil {
			// An explicit null on an optional param means "not supplied".
			if !p.Required {
				delete(values, p.Name)
			}
			continue
		}
		s, isString := v.(string)
		switch p.Type {
		case TypeInteger:
			if isString {
				if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
					values[p.Name] = float64(n)
				}
			}
		case TypeDecimal:
			if isString {
				if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					values[p.Name] = f
				}
			}
		case TypeDate:
			if isString {
				if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
					values[p.Name] = t.Format(DateLayout)
				}
			}
		case TypeString:
			switch n := v.(type) {
			case float64:
				values[p.Name] = strconv.FormatFloat(n, 'f', -1, 64)
			case bool:
				values[p.Name] = strconv.FormatBool(n)
			}
		}
	}
}

// validationMessage condenses a jsonschema error into one line.
func validationMessage(err error) string {
	lines := strings.Split(err.Error(), "\n")
	parts := make([]string, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" || (i == 0 && len(lines) > 1) {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "at '':"))
		parts = append(parts, line)
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, "; ")
}
