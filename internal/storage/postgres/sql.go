package postgres

import (
	"fmt"
	"strings"

	"sparkify/internal/storage"
)

// conflictClause selects the ON CONFLICT tail of an INSERT.
type conflictClause struct {
	// Target is the conflict target. Empty means no ON CONFLICT clause.
	Target []string
	// Update lists columns overwritten from EXCLUDED. Empty means DO NOTHING.
	Update []string
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// Pure and deterministic so placeholder numbering and the ON CONFLICT tail can
// be tested without a database.
//
// Constraints:
//   - every row has the same length as columns.
//   - columns is non-empty.
func buildInsertSQL(table string, columns []string, rows [][]any, conflict conflictClause) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgTableIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdents(columns))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("$%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(conflict.Target) > 0 {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(joinIdents(conflict.Target))
		b.WriteString(")")
		if len(conflict.Update) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			b.WriteString(" DO UPDATE SET ")
			for i, c := range conflict.Update {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(pgIdent(c))
				b.WriteString(" = EXCLUDED.")
				b.WriteString(pgIdent(c))
			}
		}
	}

	b.WriteString(";")
	return b.String(), args
}

// buildLookupSongSQL joins songs to artists on artist_id and returns the
// lowest song_id matching title, artist name and the duration window.
func buildLookupSongSQL(q storage.SongQuery) (string, []any) {
	sql := fmt.Sprintf(
		`SELECT s.%[1]s, s.%[2]s FROM %[3]s s JOIN %[4]s a ON a.%[2]s = s.%[2]s `+
			`WHERE s.%[5]s = $1 AND a.%[6]s = $2 AND s.%[7]s BETWEEN $3 AND $4 `+
			`ORDER BY s.%[1]s LIMIT 1;`,
		pgIdent("song_id"), pgIdent("artist_id"),
		pgTableIdent(storage.SongsTable), pgTableIdent(storage.ArtistsTable),
		pgIdent("title"), pgIdent("name"), pgIdent("duration"),
	)
	return sql, []any{q.Title, q.Artist, q.Duration - q.Tolerance, q.Duration + q.Tolerance}
}
