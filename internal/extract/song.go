// Package extract maps parsed records onto star-schema rows.
package extract

import (
	"sparkify/internal/records"
	"sparkify/internal/star"
)

// ExtractSong maps one song-metadata record to its Song and Artist rows.
//
// Either both rows are returned or neither: the first missing required field
// fails the record with a *records.IncompleteRecordError.
func ExtractSong(rec records.Record) (star.Song, star.Artist, error) {
	songID, err := rec.RequireString("song_id")
	if err != nil {
		return star.Song{}, star.Artist{}, err
	}
	title, err := rec.RequireString("title")
	if err != nil {
		return star.Song{}, star.Artist{}, err
	}
	artistID, err := rec.RequireString("artist_id")
	if err != nil {
		return star.Song{}, star.Artist{}, err
	}
	artistName, err := rec.RequireString("artist_name")
	if err != nil {
		return star.Song{}, star.Artist{}, err
	}
	year, err := rec.RequireInt("year")
	if err != nil {
		return star.Song{}, star.Artist{}, err
	}
	duration, err := rec.RequireFloat("duration")
	if err != nil {
		return star.Song{}, star.Artist{}, err
	}

	song := star.Song{
		SongID:   songID,
		Title:    title,
		ArtistID: artistID,
		Year:     year,
		Duration: duration,
	}
	artist := star.Artist{
		ArtistID:  artistID,
		Name:      artistName,
		Location:  rec.OptionalString("artist_location"),
		Latitude:  rec.OptionalFloat("artist_latitude"),
		Longitude: rec.OptionalFloat("artist_longitude"),
	}
	return song, artist, nil
}
