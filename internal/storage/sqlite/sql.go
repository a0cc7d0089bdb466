package sqlite

import (
	"fmt"
	"strings"

	"sparkify/internal/storage"
)

// buildInsertSQL builds a single-row INSERT.
//
//   - conflict empty: plain insert.
//   - update empty: ON CONFLICT (...) DO NOTHING.
//   - otherwise: ON CONFLICT (...) DO UPDATE SET c = excluded.c.
//
// ON CONFLICT is used rather than INSERT OR IGNORE, which would also swallow
// NOT NULL violations.
func buildInsertSQL(table string, columns, conflict, update []string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdentList(columns))
	b.WriteString(") VALUES (")
	b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "))
	b.WriteString(")")

	if len(conflict) > 0 {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(joinIdentList(conflict))
		b.WriteString(")")
		if len(update) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			b.WriteString(" DO UPDATE SET ")
			for i, c := range update {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(sqlIdent(c))
				b.WriteString(" = excluded.")
				b.WriteString(sqlIdent(c))
			}
		}
	}
	return b.String()
}

func buildLookupSongSQL(q storage.SongQuery) (string, []any) {
	sql := fmt.Sprintf(
		`SELECT s."song_id", s."artist_id" FROM %s s JOIN %s a ON a."artist_id" = s."artist_id" `+
			`WHERE s."title" = ? AND a."name" = ? AND s."duration" BETWEEN ? AND ? `+
			`ORDER BY s."song_id" LIMIT 1`,
		sqlIdent(storage.SongsTable), sqlIdent(storage.ArtistsTable),
	)
	return sql, []any{q.Title, q.Artist, q.Duration - q.Tolerance, q.Duration + q.Tolerance}
}
