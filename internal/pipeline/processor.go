// Package pipeline turns song and activity-log files into star-schema rows.
//
// Processor handles one file inside a caller-supplied transaction; Driver
// discovers files and owns the per-file transaction boundary.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/go-git/go-billy/v5"

	"sparkify/internal/extract"
	"sparkify/internal/loader"
	pjson "sparkify/internal/parser/json"
	"sparkify/internal/records"
	"sparkify/internal/star"
	"sparkify/internal/storage"
)

// Logger is the minimal logging interface used by the pipeline.
// *log.Logger and *zerolog.Logger satisfy it.
type Logger interface {
	Printf(format string, v ...any)
}

// warner is implemented by loggers that can emit at warning level. Skip
// warnings fall back to Printf otherwise.
type warner interface {
	Warnf(format string, v ...any)
}

// Kind of input file.
const (
	KindSong = "song"
	KindLog  = "log"
)

// Outcome tags what happened to one source record.
type Outcome int

const (
	// OutcomeApplied: every row derived from the record was written.
	OutcomeApplied Outcome = iota
	// OutcomeFiltered: the record is not a playback event and was ignored.
	OutcomeFiltered
	// OutcomeSkipped: the record was unusable and skipped with a warning.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeFiltered:
		return "filtered"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// RecordResult is the non-fatal result of processing one record. Err is set
// only for OutcomeSkipped.
type RecordResult struct {
	Index   int
	Outcome Outcome
	Err     error
}

// FileReport summarizes one processed file.
type FileReport struct {
	Path string
	Kind string

	Records  int
	Applied  int
	Filtered int
	Skipped  []RecordResult

	// Rows counts rows written per table; conflicting dimension inserts count
	// as written.
	Rows map[string]int
}

func (r *FileReport) add(res RecordResult) {
	switch res.Outcome {
	case OutcomeApplied:
		r.Applied++
	case OutcomeFiltered:
		r.Filtered++
	case OutcomeSkipped:
		r.Skipped = append(r.Skipped, res)
	}
}

// Processor derives and loads the rows of single files.
type Processor struct {
	FS billy.Filesystem

	// Tables defaults to star.Tables().
	Tables []storage.TableSpec

	// DurationTolerance is passed to the song resolver; <= 0 selects
	// loader.DefaultDurationTolerance.
	DurationTolerance float64

	Logger Logger
}

// ProcessSongFile loads the Song and Artist rows of a song-metadata file.
//
// Any parse or extraction failure is fatal for the file, as is a file that
// holds no record at all (empty, null or an empty array). Failures are
// returned as a *FileError; the caller rolls back tx so no partial
// Song/Artist pair stays.
func (p *Processor) ProcessSongFile(ctx context.Context, tx storage.Tx, path string) (FileReport, error) {
	rep := FileReport{Path: path, Kind: KindSong}

	f, err := pjson.Open(p.FS, path)
	if err != nil {
		return rep, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	ld := loader.New(tx, p.tables())
	for rec, err := range pjson.Records(f, pjson.FormatDocument) {
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			return rep, &FileError{Path: path, Index: recordIndex(err), Err: err}
		}
		rep.Records++

		res, err := p.applySong(ctx, ld, rec)
		if err != nil {
			return rep, &FileError{Path: path, Index: rec.Index, Err: err}
		}
		rep.add(res)
	}
	if rep.Records == 0 {
		return rep, &FileError{Path: path, Err: &records.MalformedRecordError{Index: 1, Err: errNoSongRecord}}
	}

	rep.Rows = ld.Applied()
	return rep, nil
}

var errNoSongRecord = errors.New("no song record")

func (p *Processor) applySong(ctx context.Context, ld *loader.Loader, rec records.Record) (RecordResult, error) {
	song, artist, err := extract.ExtractSong(rec)
	if err != nil {
		return RecordResult{}, err
	}
	if err := ld.Apply(ctx, artist); err != nil {
		return RecordResult{}, err
	}
	if err := ld.Apply(ctx, song); err != nil {
		return RecordResult{}, err
	}
	return RecordResult{Index: rec.Index, Outcome: OutcomeApplied}, nil
}

// ProcessLogFile loads the Time, User and Songplay rows of an activity log.
//
// Only NextSong events produce rows. A line that is not valid JSON, or an
// event without ts/userId, is skipped with a warning and listed in
// FileReport.Skipped. Store failures are fatal and returned as a *FileError.
func (p *Processor) ProcessLogFile(ctx context.Context, tx storage.Tx, path string) (FileReport, error) {
	rep := FileReport{Path: path, Kind: KindLog}

	f, err := pjson.Open(p.FS, path)
	if err != nil {
		return rep, &FileError{Path: path, Err: err}
	}
	defer f.Close()

	ld := loader.New(tx, p.tables())
	rs := loader.NewResolver(tx, p.DurationTolerance)

	for rec, err := range pjson.Records(f, pjson.FormatLines) {
		if cerr := ctx.Err(); cerr != nil {
			return rep, &FileError{Path: path, Err: cerr}
		}
		if err != nil {
			var mal *records.MalformedRecordError
			if !errors.As(err, &mal) {
				return rep, &FileError{Path: path, Err: err}
			}
			rep.Records++
			p.skip(&rep, RecordResult{Index: mal.Index, Outcome: OutcomeSkipped, Err: err})
			continue
		}
		rep.Records++

		res, err := p.applyEvent(ctx, ld, rs, rec)
		if err != nil {
			return rep, &FileError{Path: path, Index: rec.Index, Err: err}
		}
		if res.Outcome == OutcomeSkipped {
			p.skip(&rep, res)
			continue
		}
		rep.add(res)
	}

	rep.Rows = ld.Applied()
	return rep, nil
}

// applyEvent writes Time, then User, then the resolved Songplay, so the fact
// row's references exist when it is inserted.
func (p *Processor) applyEvent(ctx context.Context, ld *loader.Loader, rs *loader.Resolver, rec records.Record) (RecordResult, error) {
	ev, ok, err := extract.ExtractEvent(rec)
	if err != nil {
		var inc *records.IncompleteRecordError
		if errors.As(err, &inc) {
			return RecordResult{Index: rec.Index, Outcome: OutcomeSkipped, Err: err}, nil
		}
		return RecordResult{}, err
	}
	if !ok {
		return RecordResult{Index: rec.Index, Outcome: OutcomeFiltered}, nil
	}

	if err := ld.Apply(ctx, ev.Time); err != nil {
		return RecordResult{}, err
	}
	if err := ld.Apply(ctx, ev.User); err != nil {
		return RecordResult{}, err
	}
	songID, artistID, err := rs.Resolve(ctx, ev.Song, ev.Artist, ev.Length)
	if err != nil {
		return RecordResult{}, err
	}
	if err := ld.Apply(ctx, ev.Songplay(songID, artistID)); err != nil {
		return RecordResult{}, err
	}
	return RecordResult{Index: rec.Index, Outcome: OutcomeApplied}, nil
}

func (p *Processor) skip(rep *FileReport, res RecordResult) {
	rep.add(res)
	p.warnf("stage=skip file=%s index=%d field=%s err=%v", rep.Path, res.Index, skipField(res.Err), res.Err)
}

func (p *Processor) tables() []storage.TableSpec {
	if len(p.Tables) > 0 {
		return p.Tables
	}
	return star.Tables()
}

func (p *Processor) warnf(format string, v ...any) {
	if w, ok := p.Logger.(warner); ok {
		w.Warnf(format, v...)
		return
	}
	p.logf()("WARN "+format, v...)
}

func (p *Processor) logf() func(format string, v ...any) {
	return loggerFunc(p.Logger)
}

func loggerFunc(l Logger) func(format string, v ...any) {
	if l == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return l.Printf
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
