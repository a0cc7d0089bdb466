package star

import "sparkify/internal/storage"

func nullable(v bool) *bool { return &v }

// Tables returns the star-schema declarations in creation order: every table
// appears after the tables its foreign keys reference.
//
// Column types are logical (text, longtext, int, bigint, double, timestamp);
// each backend maps them to its own dialect.
func Tables() []storage.TableSpec {
	return []storage.TableSpec{
		{
			Name:            TableArtists,
			AutoCreateTable: true,
			Columns: []storage.ColumnSpec{
				{Name: "artist_id", Type: "text"},
				{Name: "name", Type: "text"},
				{Name: "location", Type: "text", Nullable: nullable(true)},
				{Name: "latitude", Type: "double", Nullable: nullable(true)},
				{Name: "longitude", Type: "double", Nullable: nullable(true)},
			},
			Constraints: []storage.ConstraintSpec{{Kind: "primary_key", Columns: []string{"artist_id"}}},
			Indexes:     []storage.IndexSpec{{Name: "artists_name_idx", Columns: []string{"name"}}},
			Load: storage.LoadSpec{
				Kind:     storage.LoadDimension,
				Conflict: &storage.ConflictSpec{TargetColumns: []string{"artist_id"}, Action: storage.ActionDoNothing},
			},
		},
		{
			// No foreign key on songs.artist_id.
			Name:            TableSongs,
			AutoCreateTable: true,
			Columns: []storage.ColumnSpec{
				{Name: "song_id", Type: "text"},
				{Name: "title", Type: "text"},
				{Name: "artist_id", Type: "text"},
				{Name: "year", Type: "int"},
				{Name: "duration", Type: "double"},
			},
			Constraints: []storage.ConstraintSpec{{Kind: "primary_key", Columns: []string{"song_id"}}},
			Indexes:     []storage.IndexSpec{{Name: "songs_title_duration_idx", Columns: []string{"title", "duration"}}},
			Load: storage.LoadSpec{
				Kind:     storage.LoadDimension,
				Conflict: &storage.ConflictSpec{TargetColumns: []string{"song_id"}, Action: storage.ActionDoNothing},
			},
		},
		{
			Name:            TableUsers,
			AutoCreateTable: true,
			Columns: []storage.ColumnSpec{
				{Name: "user_id", Type: "text"},
				{Name: "first_name", Type: "text", Nullable: nullable(true)},
				{Name: "last_name", Type: "text", Nullable: nullable(true)},
				{Name: "gender", Type: "text", Nullable: nullable(true)},
				{Name: "level", Type: "text", Nullable: nullable(true)},
			},
			Constraints: []storage.ConstraintSpec{{Kind: "primary_key", Columns: []string{"user_id"}}},
			Load: storage.LoadSpec{
				Kind:     storage.LoadDimension,
				Conflict: &storage.ConflictSpec{TargetColumns: []string{"user_id"}, Action: storage.ActionDoUpdate},
			},
		},
		{
			Name:            TableTime,
			AutoCreateTable: true,
			Columns: []storage.ColumnSpec{
				{Name: "start_time", Type: "timestamp"},
				{Name: "hour", Type: "int"},
				{Name: "day", Type: "int"},
				{Name: "week", Type: "int"},
				{Name: "month", Type: "int"},
				{Name: "year", Type: "int"},
				{Name: "weekday", Type: "int"},
			},
			Constraints: []storage.ConstraintSpec{{Kind: "primary_key", Columns: []string{"start_time"}}},
			Load: storage.LoadSpec{
				Kind:     storage.LoadDimension,
				Conflict: &storage.ConflictSpec{TargetColumns: []string{"start_time"}, Action: storage.ActionDoNothing},
			},
		},
		{
			Name:            TableSongplays,
			AutoCreateTable: true,
			PrimaryKey:      &storage.PrimaryKeySpec{Name: "songplay_id", Type: "serial"},
			Columns: []storage.ColumnSpec{
				{Name: "start_time", Type: "timestamp", References: "time(start_time)"},
				{Name: "user_id", Type: "text", References: "users(user_id)"},
				{Name: "level", Type: "text", Nullable: nullable(true)},
				{Name: "song_id", Type: "text", Nullable: nullable(true), References: "songs(song_id)"},
				{Name: "artist_id", Type: "text", Nullable: nullable(true), References: "artists(artist_id)"},
				{Name: "session_id", Type: "bigint", Nullable: nullable(true)},
				{Name: "location", Type: "text", Nullable: nullable(true)},
				{Name: "user_agent", Type: "longtext", Nullable: nullable(true)},
			},
			Indexes: []storage.IndexSpec{{Name: "songplays_user_idx", Columns: []string{"user_id"}}},
			Load:    storage.LoadSpec{Kind: storage.LoadFact},
		},
	}
}

// TableByName returns the declaration of one star table.
func TableByName(name string) (storage.TableSpec, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return storage.TableSpec{}, false
}
