package loader

import (
	"context"
	"strings"

	"sparkify/internal/storage"
)

// DefaultDurationTolerance is the absolute window, in seconds, within which a
// logged song length matches a stored song duration.
const DefaultDurationTolerance = 1e-4

// Resolver maps a playback event's (title, artist name, duration) to the
// stored song and artist ids.
//
// Lookups go through the file's transaction, so songs loaded earlier in the
// same transaction are visible.
type Resolver struct {
	tx        storage.Tx
	tolerance float64
}

// NewResolver returns a Resolver on tx. A tolerance <= 0 selects
// DefaultDurationTolerance.
func NewResolver(tx storage.Tx, tolerance float64) *Resolver {
	if tolerance <= 0 {
		tolerance = DefaultDurationTolerance
	}
	return &Resolver{tx: tx, tolerance: tolerance}
}

// Resolve returns (nil, nil, nil) when nothing matches or when the event lacks
// a title, artist or duration; no query is issued in that case. Query failures
// are returned as *storage.StoreLookupError.
func (r *Resolver) Resolve(ctx context.Context, title, artist string, duration *float64) (songID, artistID *string, err error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(artist) == "" || duration == nil {
		return nil, nil, nil
	}

	m, found, err := r.tx.LookupSong(ctx, storage.SongQuery{
		Title:     title,
		Artist:    artist,
		Duration:  *duration,
		Tolerance: r.tolerance,
	})
	if err != nil {
		return nil, nil, &storage.StoreLookupError{Err: err}
	}
	if !found {
		return nil, nil, nil
	}
	return &m.SongID, &m.ArtistID, nil
}
