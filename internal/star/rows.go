// Package star declares the sparkify star schema: one songplays fact table and
// the artists, songs, users and time dimensions.
package star

import (
	"time"

	"sparkify/internal/storage"
)

// Table names.
const (
	TableArtists   = storage.ArtistsTable
	TableSongs     = storage.SongsTable
	TableUsers     = "users"
	TableTime      = "time"
	TableSongplays = "songplays"
)

// Row is anything the loader can write: a table name plus values aligned with
// Columns().
type Row interface {
	Table() string
	Columns() []string
	Values() []any
}

type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderUnknown Gender = ""
)

// ParseGender maps source values to M/F; anything else is unknown.
func ParseGender(s string) Gender {
	switch s {
	case "M", "m":
		return GenderMale
	case "F", "f":
		return GenderFemale
	default:
		return GenderUnknown
	}
}

type Level string

const (
	LevelFree Level = "free"
	LevelPaid Level = "paid"
)

type Artist struct {
	ArtistID  string
	Name      string
	Location  *string
	Latitude  *float64
	Longitude *float64
}

func (Artist) Table() string { return TableArtists }

func (Artist) Columns() []string {
	return []string{"artist_id", "name", "location", "latitude", "longitude"}
}

func (a Artist) Values() []any {
	return []any{a.ArtistID, a.Name, nullString(a.Location), nullFloat(a.Latitude), nullFloat(a.Longitude)}
}

// Song.Year is 0 when the release year is unknown.
type Song struct {
	SongID   string
	Title    string
	ArtistID string
	Year     int64
	Duration float64
}

func (Song) Table() string { return TableSongs }

func (Song) Columns() []string {
	return []string{"song_id", "title", "artist_id", "year", "duration"}
}

func (s Song) Values() []any {
	return []any{s.SongID, s.Title, s.ArtistID, s.Year, s.Duration}
}

type User struct {
	UserID    string
	FirstName *string
	LastName  *string
	Gender    Gender
	Level     Level
}

func (User) Table() string { return TableUsers }

func (User) Columns() []string {
	return []string{"user_id", "first_name", "last_name", "gender", "level"}
}

func (u User) Values() []any {
	return []any{u.UserID, nullString(u.FirstName), nullString(u.LastName), emptyAsNull(string(u.Gender)), emptyAsNull(string(u.Level))}
}

// Time is the time dimension row for one playback instant.
//
// Weekday counts from Monday=0 to Sunday=6; Week is the ISO 8601 week.
type Time struct {
	StartTime time.Time
	Hour      int
	Day       int
	Week      int
	Month     int
	Year      int
	Weekday   int
}

// NewTime derives the time dimension row from a millisecond epoch, in UTC.
func NewTime(epochMillis int64) Time {
	ts := time.UnixMilli(epochMillis).UTC()
	_, week := ts.ISOWeek()
	return Time{
		StartTime: ts,
		Hour:      ts.Hour(),
		Day:       ts.Day(),
		Week:      week,
		Month:     int(ts.Month()),
		Year:      ts.Year(),
		Weekday:   (int(ts.Weekday()) + 6) % 7,
	}
}

func (Time) Table() string { return TableTime }

func (Time) Columns() []string {
	return []string{"start_time", "hour", "day", "week", "month", "year", "weekday"}
}

func (t Time) Values() []any {
	return []any{t.StartTime, t.Hour, t.Day, t.Week, t.Month, t.Year, t.Weekday}
}

// Songplay is one playback event. SongID and ArtistID are nil when the
// event's song could not be resolved.
type Songplay struct {
	StartTime time.Time
	UserID    string
	Level     Level
	SongID    *string
	ArtistID  *string
	SessionID *int64
	Location  *string
	UserAgent *string
}

func (Songplay) Table() string { return TableSongplays }

func (Songplay) Columns() []string {
	return []string{"start_time", "user_id", "level", "song_id", "artist_id", "session_id", "location", "user_agent"}
}

func (p Songplay) Values() []any {
	var session any
	if p.SessionID != nil {
		session = *p.SessionID
	}
	return []any{
		p.StartTime, p.UserID, emptyAsNull(string(p.Level)),
		nullString(p.SongID), nullString(p.ArtistID), session,
		nullString(p.Location), nullString(p.UserAgent),
	}
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func emptyAsNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
