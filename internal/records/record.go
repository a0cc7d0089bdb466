// Package records defines the flat record type produced by the parsers and
// consumed by the extractors, together with the parse/extract error kinds.
package records

import (
	"math"
	"strconv"
	"strings"
)

// Record is one decoded JSON object with nested objects flattened into dotted
// keys. Values are one of: string, int64, float64, bool, nil.
type Record struct {
	// Index is the 1-based position of the record in its source (line number
	// for newline-delimited input).
	Index  int
	Fields map[string]any
}

// Has reports whether key is present with a non-nil value.
func (r Record) Has(key string) bool {
	v, ok := r.Fields[key]
	return ok && v != nil
}

// String returns the field as a string. Integral numbers are formatted in base
// 10 so ids that arrive as JSON numbers still compare as text.
func (r Record) String(key string) (string, bool) {
	switch v := r.Fields[key].(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// Int returns the field as an int64. Only integral values qualify.
func (r Record) Int(key string) (int64, bool) {
	switch v := r.Fields[key].(type) {
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return int64(v), true
		}
	}
	return 0, false
}

// Float returns the field as a float64, widening integers.
func (r Record) Float(key string) (float64, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// RequireString returns a non-blank string field or an IncompleteRecordError.
func (r Record) RequireString(key string) (string, error) {
	s, ok := r.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return "", &IncompleteRecordError{Index: r.Index, Field: key}
	}
	return s, nil
}

// RequireInt returns an integral field or an IncompleteRecordError.
func (r Record) RequireInt(key string) (int64, error) {
	n, ok := r.Int(key)
	if !ok {
		return 0, &IncompleteRecordError{Index: r.Index, Field: key}
	}
	return n, nil
}

// RequireFloat returns a numeric field or an IncompleteRecordError.
func (r Record) RequireFloat(key string) (float64, error) {
	f, ok := r.Float(key)
	if !ok {
		return 0, &IncompleteRecordError{Index: r.Index, Field: key}
	}
	return f, nil
}

// OptionalString returns nil when the field is absent, null or blank.
func (r Record) OptionalString(key string) *string {
	s, ok := r.String(key)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// OptionalFloat returns nil when the field is absent or not numeric.
func (r Record) OptionalFloat(key string) *float64 {
	f, ok := r.Float(key)
	if !ok {
		return nil
	}
	return &f
}

// OptionalInt returns nil when the field is absent or not integral.
func (r Record) OptionalInt(key string) *int64 {
	n, ok := r.Int(key)
	if !ok {
		return nil
	}
	return &n
}
