package mssql

import (
	"fmt"
	"strings"

	"sparkify/internal/storage"
)

// placeholders returns "@p<start>, @p<start+1>, ..." for n parameters.
func placeholders(start, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("@p%d", start+i))
	}
	return b.String()
}

// buildInsertSQL builds a plain single-row INSERT.
func buildInsertSQL(table string, columns []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);",
		mssqlTableIdent(table), joinIdents(columns), placeholders(1, len(columns)))
}

// buildInsertNotExistsSQL inserts one row unless a row with the same key
// values exists. SQL Server has no ON CONFLICT; the NOT EXISTS probe runs in
// the same statement.
func buildInsertNotExistsSQL(table string, columns, keyColumns []string) (string, error) {
	var b strings.Builder

	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")
	b.WriteString(joinIdents(columns))
	b.WriteString(") SELECT ")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("v.")
		b.WriteString(mssqlIdent(c))
	}

	b.WriteString(" FROM (VALUES (")
	b.WriteString(placeholders(1, len(columns)))
	b.WriteString(")) AS v(")
	b.WriteString(joinIdents(columns))
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" t WHERE ")

	for i, k := range keyColumns {
		if indexOf(columns, k) < 0 {
			return "", fmt.Errorf("mssql: key column %q not in insert columns", k)
		}
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(k))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(k))
	}
	b.WriteString(");")

	return b.String(), nil
}

// buildUpsertSQL updates the non-key columns of the keyed row and inserts it
// when the update touched nothing. Parameters are bound once by column
// position and reused by both statements.
func buildUpsertSQL(table string, columns, keyColumns []string) (string, error) {
	update := storage.NonKeyColumns(keyColumns, columns)
	if len(update) == 0 {
		return buildInsertNotExistsSQL(table, columns, keyColumns)
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" SET ")
	for i, c := range update {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%s = @p%d", mssqlIdent(c), indexOf(columns, c)+1))
	}
	b.WriteString(" WHERE ")
	for i, k := range keyColumns {
		pos := indexOf(columns, k)
		if pos < 0 {
			return "", fmt.Errorf("mssql: key column %q not in insert columns", k)
		}
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(fmt.Sprintf("%s = @p%d", mssqlIdent(k), pos+1))
	}
	b.WriteString("; IF @@ROWCOUNT = 0 ")
	b.WriteString(buildInsertSQL(table, columns))

	return b.String(), nil
}

func buildLookupSongSQL(q storage.SongQuery) (string, []any) {
	sql := fmt.Sprintf(
		"SELECT TOP 1 s.[song_id], s.[artist_id] FROM %s s JOIN %s a ON a.[artist_id] = s.[artist_id] "+
			"WHERE s.[title] = @p1 AND a.[name] = @p2 AND s.[duration] BETWEEN @p3 AND @p4 "+
			"ORDER BY s.[song_id];",
		mssqlTableIdent(storage.SongsTable), mssqlTableIdent(storage.ArtistsTable),
	)
	return sql, []any{q.Title, q.Artist, q.Duration - q.Tolerance, q.Duration + q.Tolerance}
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
