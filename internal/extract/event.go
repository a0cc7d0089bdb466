package extract

import (
	"sparkify/internal/records"
	"sparkify/internal/star"
)

// PageNextSong marks a playback event in the activity log.
const PageNextSong = "NextSong"

// PlayEvent is one admitted playback event.
//
// Song, Artist and Length only feed song resolution; they are never stored.
type PlayEvent struct {
	Index int

	Time star.Time
	User star.User

	Song   string
	Artist string
	Length *float64

	SessionID *int64
	Location  *string
	UserAgent *string
}

// ExtractEvent admits NextSong records and derives their rows.
//
// Returns (_, false, nil) for any other page. An admitted record without ts or
// userId fails with a *records.IncompleteRecordError.
func ExtractEvent(rec records.Record) (PlayEvent, bool, error) {
	page, _ := rec.String("page")
	if page != PageNextSong {
		return PlayEvent{}, false, nil
	}

	ts, err := rec.RequireInt("ts")
	if err != nil {
		return PlayEvent{}, false, err
	}
	userID, err := rec.RequireString("userId")
	if err != nil {
		return PlayEvent{}, false, err
	}

	level, _ := rec.String("level")
	gender, _ := rec.String("gender")
	song, _ := rec.String("song")
	artist, _ := rec.String("artist")

	ev := PlayEvent{
		Index: rec.Index,
		Time:  star.NewTime(ts),
		User: star.User{
			UserID:    userID,
			FirstName: rec.OptionalString("firstName"),
			LastName:  rec.OptionalString("lastName"),
			Gender:    star.ParseGender(gender),
			Level:     star.Level(level),
		},
		Song:      song,
		Artist:    artist,
		Length:    rec.OptionalFloat("length"),
		SessionID: rec.OptionalInt("sessionId"),
		Location:  rec.OptionalString("location"),
		UserAgent: rec.OptionalString("userAgent"),
	}
	return ev, true, nil
}

// Songplay builds the fact row once the event's song has been resolved.
func (e PlayEvent) Songplay(songID, artistID *string) star.Songplay {
	return star.Songplay{
		StartTime: e.Time.StartTime,
		UserID:    e.User.UserID,
		Level:     e.User.Level,
		SongID:    songID,
		ArtistID:  artistID,
		SessionID: e.SessionID,
		Location:  e.Location,
		UserAgent: e.UserAgent,
	}
}
