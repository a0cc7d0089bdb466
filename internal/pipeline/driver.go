package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"sparkify/internal/metrics"
	"sparkify/internal/storage"
)

// DefaultExtension selects input files during discovery.
const DefaultExtension = ".json"

// RunStats aggregates a Driver run.
type RunStats struct {
	FilesFound     int
	FilesProcessed int
	FilesFailed    int

	Records  int
	Applied  int
	Filtered int
	Skipped  int

	// Rows sums FileReport.Rows over committed files: dimension inserts that
	// hit an existing key are counted too.
	Rows map[string]int

	// Errors holds every fatal file error, in processing order.
	Errors []error

	Duration time.Duration
}

// Driver runs the song pass and then the log pass, one transaction per file.
type Driver struct {
	Repo      storage.Repository
	Processor *Processor

	SongDir string
	LogDir  string

	// Extension defaults to DefaultExtension; matching ignores case.
	Extension string

	// ContinueOnError keeps going after a failed file; the run still returns
	// an error joining every file failure.
	ContinueOnError bool

	Logger Logger
}

type fileFunc func(ctx context.Context, tx storage.Tx, path string) (FileReport, error)

// Run processes every song file, then every log file, each in lexical order.
//
// Songs go first so the resolver can see every song when logs are loaded.
// A file's rows are committed together; a fatal error rolls the file back and
// stops the run unless ContinueOnError is set.
func (d *Driver) Run(ctx context.Context) (stats RunStats, err error) {
	stats = RunStats{Rows: map[string]int{}}
	if d.Repo == nil || d.Processor == nil {
		return stats, fmt.Errorf("pipeline: Repo and Processor are required")
	}

	logf := loggerFunc(d.Logger)
	start := time.Now()
	defer func() { stats.Duration = time.Since(start) }()

	passes := []struct {
		dir  string
		kind string
		fn   fileFunc
	}{
		{dir: d.SongDir, kind: KindSong, fn: d.Processor.ProcessSongFile},
		{dir: d.LogDir, kind: KindLog, fn: d.Processor.ProcessLogFile},
	}

	for _, pass := range passes {
		if strings.TrimSpace(pass.dir) == "" {
			continue
		}
		files, err := Discover(d.Processor.FS, pass.dir, d.extension())
		if err != nil {
			return stats, err
		}
		stats.FilesFound += len(files)
		logf("%d files found in %s", len(files), pass.dir)

		for i, path := range files {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			err := d.runFile(ctx, pass.kind, pass.fn, path, &stats)
			if err != nil {
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, err)
				logf("stage=file kind=%s file=%s status=error err=%v", pass.kind, path, err)
				if !d.ContinueOnError {
					return stats, err
				}
			} else {
				stats.FilesProcessed++
			}
			logf("%d/%d files processed.", i+1, len(files))
		}
	}

	logf("stage=run files=%d failed=%d records=%d applied=%d filtered=%d skipped=%d duration=%s",
		stats.FilesFound, stats.FilesFailed, stats.Records, stats.Applied, stats.Filtered, stats.Skipped, durMS(start))

	if len(stats.Errors) > 0 {
		return stats, errors.Join(stats.Errors...)
	}
	return stats, nil
}

func (d *Driver) runFile(ctx context.Context, kind string, fn fileFunc, path string, stats *RunStats) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordFile(kind, status, time.Since(start))
	}()

	tx, err := d.Repo.Begin(ctx)
	if err != nil {
		return &FileError{Path: path, Err: err}
	}

	rep, err := fn(ctx, tx, path)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			loggerFunc(d.Logger)("stage=rollback file=%s err=%v", path, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &FileError{Path: path, Err: fmt.Errorf("commit: %w", err)}
	}

	stats.Records += rep.Records
	stats.Applied += rep.Applied
	stats.Filtered += rep.Filtered
	stats.Skipped += len(rep.Skipped)
	for table, n := range rep.Rows {
		stats.Rows[table] += n
		metrics.RecordRows(table, n)
	}
	metrics.RecordRecords(OutcomeApplied.String(), rep.Applied)
	metrics.RecordRecords(OutcomeFiltered.String(), rep.Filtered)
	metrics.RecordRecords(OutcomeSkipped.String(), len(rep.Skipped))

	loggerFunc(d.Logger)("stage=file kind=%s file=%s status=ok records=%d applied=%d filtered=%d skipped=%d duration=%s",
		kind, path, rep.Records, rep.Applied, rep.Filtered, len(rep.Skipped), durMS(start))
	return nil
}

func (d *Driver) extension() string {
	if d.Extension == "" {
		return DefaultExtension
	}
	return d.Extension
}

// Discover returns the regular files under root whose extension matches ext
// (case-insensitive), sorted lexically.
func Discover(fs billy.Filesystem, root, ext string) ([]string, error) {
	if fs == nil {
		return nil, fmt.Errorf("pipeline: nil filesystem")
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var files []string
	err := util.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ext == "" || strings.EqualFold(filepath.Ext(path), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
