package postgres

import (
	"strings"
	"testing"

	"sparkify/internal/storage"
)

func TestBuildInsertSQL_NoConflict_PlainInsert(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL(
		"songplays",
		[]string{"user_id", "level", "song_id"},
		[][]any{
			{"15", "paid", nil},
			{"16", "free", "SOSONG1"},
		},
		conflictClause{},
	)

	if strings.Contains(sql, "ON CONFLICT") {
		t.Fatalf("expected no ON CONFLICT clause, got: %q", sql)
	}
	// 2 rows * 3 columns = 6 args
	if len(args) != 6 {
		t.Fatalf("expected 6 args, got %d", len(args))
	}
	if !strings.Contains(sql, "VALUES ($1, $2, $3), ($4, $5, $6)") {
		t.Fatalf("unexpected VALUES placeholders: %q", sql)
	}
}

func TestBuildInsertSQL_DoNothing(t *testing.T) {
	t.Parallel()

	sql, args := buildInsertSQL(
		"artists",
		[]string{"artist_id", "name"},
		[][]any{{"ARTIST1", "Coldplay"}},
		conflictClause{Target: []string{"artist_id"}},
	)

	want := `INSERT INTO "artists" ("artist_id", "name") VALUES ($1, $2) ON CONFLICT ("artist_id") DO NOTHING;`
	if sql != want {
		t.Fatalf("sql=%q\nwant %q", sql, want)
	}
	if len(args) != 2 || args[0] != "ARTIST1" {
		t.Fatalf("args=%v", args)
	}
}

func TestBuildInsertSQL_DoUpdateOverwritesNonKeyColumns(t *testing.T) {
	t.Parallel()

	cols := []string{"user_id", "first_name", "level"}
	sql, _ := buildInsertSQL(
		"users",
		cols,
		[][]any{{"15", "Lily", "paid"}},
		conflictClause{Target: []string{"user_id"}, Update: storage.NonKeyColumns([]string{"user_id"}, cols)},
	)

	want := `ON CONFLICT ("user_id") DO UPDATE SET "first_name" = EXCLUDED."first_name", "level" = EXCLUDED."level";`
	if !strings.HasSuffix(sql, want) {
		t.Fatalf("sql=%q\nwant suffix %q", sql, want)
	}
}

func TestBuildLookupSongSQL(t *testing.T) {
	t.Parallel()

	sql, args := buildLookupSongSQL(storage.SongQuery{Title: "Fix You", Artist: "Coldplay", Duration: 296.12, Tolerance: 0.01})

	for _, frag := range []string{
		`FROM "songs" s JOIN "artists" a ON a."artist_id" = s."artist_id"`,
		`s."title" = $1 AND a."name" = $2`,
		`s."duration" BETWEEN $3 AND $4`,
		`ORDER BY s."song_id" LIMIT 1`,
	} {
		if !strings.Contains(sql, frag) {
			t.Fatalf("lookup sql missing %q: %q", frag, sql)
		}
	}
	if len(args) != 4 || args[0] != "Fix You" || args[1] != "Coldplay" {
		t.Fatalf("args=%v", args)
	}
	lo, hi := args[2].(float64), args[3].(float64)
	if lo >= 296.12 || hi <= 296.12 || hi-lo > 0.0201 {
		t.Fatalf("duration window=[%v,%v]", lo, hi)
	}
}
