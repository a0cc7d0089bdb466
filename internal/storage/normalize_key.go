package storage

import (
	"strconv"
	"strings"
	"time"
)

// NormalizeKey converts a key value to a canonical string form, suitable for
// in-memory map keys (e.g. "SOSONG1", "39" or "2018-11-01T21:01:46.796Z").
//
// Backends must not assume a particular underlying type for keys; this helper
// keeps keys comparable whether an id arrived as text or as a number.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case *string:
		if t == nil {
			return ""
		}
		return strings.TrimSpace(*t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case []byte:
		return strings.TrimSpace(string(t))
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// CompositeKey joins the normalized values of a multi-column key.
func CompositeKey(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = NormalizeKey(v)
	}
	return strings.Join(parts, "\x1f")
}
