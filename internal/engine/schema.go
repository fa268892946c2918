package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// FieldKind is the declared type of a request field.
type FieldKind string

const (
	FieldNumber   FieldKind = "number"
	FieldInteger  FieldKind = "integer"
	FieldEnum     FieldKind = "enum"
	FieldOptional FieldKind = "optional_number"
)

// Field declares one named, typed, bounded request field.
//
// Required fields must be supplied by the caller; their Default is only a
// form prefill. Non-required fields fall back to Default when absent.
// Optional numbers have no default and may simply be missing.
type Field struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Unit        string    `json:"unit,omitempty"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Options     []string  `json:"options,omitempty"`
	Default     any       `json:"default,omitempty"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// Schema is the ordered field list of one calculator.
type Schema struct {
	Fields []Field `json:"fields"`
}

// Field returns the declaration for name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns every declared default, including form prefills of
// required fields.
func (s Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		if f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

// FieldError is a field-scoped structural validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Structural error codes.
const (
	CodeUnknownField = "unknown_field"
	CodeRequired     = "required"
	CodeType         = "type"
	CodeInteger      = "integer"
	CodeRange        = "range"
	CodeOption       = "option"
)

// Parse checks raw against the schema and returns the typed request. Any
// FieldError means the request must not reach derivation.
func (s Schema) Parse(raw map[string]any) (Request, []FieldError) {
	req := Request{
		numbers: make(map[string]float64),
		enums:   make(map[string]string),
	}
	var errs []FieldError

	var unknown []string
	for name := range raw {
		if _, ok := s.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, FieldError{Field: name, Code: CodeUnknownField, Message: "field is not part of this calculator"})
	}

	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if present && v == nil {
			present = false
		}
		if !present {
			switch {
			case f.Required:
				errs = append(errs, FieldError{Field: f.Name, Code: CodeRequired, Message: "field is required"})
				continue
			case f.Kind == FieldOptional || f.Default == nil:
				continue
			}
			v = f.Default
		}

		switch f.Kind {
		case FieldEnum:
			str, ok := v.(string)
			if !ok {
				errs = append(errs, FieldError{Field: f.Name, Code: CodeType, Message: "expected a string"})
				continue
			}
			if !slices.Contains(f.Options, str) {
				errs = append(errs, FieldError{Field: f.Name, Code: CodeOption,
					Message: fmt.Sprintf("%q is not one of %v", str, f.Options)})
				continue
			}
			req.enums[f.Name] = str
		case FieldNumber, FieldInteger, FieldOptional:
			num, ok := toFloat(v)
			if !ok {
				errs = append(errs, FieldError{Field: f.Name, Code: CodeType, Message: "expected a finite number"})
				continue
			}
			if f.Kind == FieldInteger && num != math.Trunc(num) {
				errs = append(errs, FieldError{Field: f.Name, Code: CodeInteger, Message: "expected a whole number"})
				continue
			}
			if num < f.Min || num > f.Max {
				errs = append(errs, FieldError{Field: f.Name, Code: CodeRange,
					Message: fmt.Sprintf("%g %s is outside [%g, %g]", num, f.Unit, f.Min, f.Max)})
				continue
			}
			req.numbers[f.Name] = num
		default:
			errs = append(errs, FieldError{Field: f.Name, Code: CodeType,
				Message: fmt.Sprintf("unsupported field kind %q", f.Kind)})
			continue
		}
		req.order = append(req.order, f.Name)
	}

	if len(errs) > 0 {
		return Request{}, errs
	}
	return req, nil
}

// Coerce converts text input, such as a spreadsheet cell or a command-line
// value, to the type its field expects. Text that does not parse is
// returned unchanged so Parse reports it against the field.
func (s Schema) Coerce(name, text string) any {
	f, ok := s.Field(name)
	if !ok || f.Kind == FieldEnum {
		return text
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", "."), 64)
	if err != nil {
		return text
	}
	return v
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
