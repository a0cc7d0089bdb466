package sqlite

import "time"

// SQLite has no timestamp type. Timestamps are stored as RFC3339Nano text in
// UTC so equal instants are byte-identical primary keys.
func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// sqliteArgs rewrites time.Time values into their stored text form.
func sqliteArgs(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case time.Time:
			out[i] = formatSQLiteTime(t)
		case *time.Time:
			if t == nil {
				out[i] = nil
			} else {
				out[i] = formatSQLiteTime(*t)
			}
		default:
			out[i] = v
		}
	}
	return out
}
