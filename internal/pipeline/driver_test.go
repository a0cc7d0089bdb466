package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"sparkify/internal/star"
	"sparkify/internal/storage/memory"
)

const day = int64(86400000)

func sampleTree() map[string]string {
	const ts = int64(1541106106796)
	yellow := strings.NewReplacer(`"SOSONG1"`, `"SOSONG2"`, `"Fix You"`, `"Yellow"`, `296.12`, `266.77`).Replace(fixYouSong)
	return map[string]string{
		"data/song_data/A/B/TRAB2.json": yellow,
		"data/song_data/A/A/TRAA1.json": fixYouSong,
		"data/song_data/A/A/README.txt": "not input",
		"data/log_data/2018/11/2018-11-01-events.json": lines(
			event("Home", "U1", "free", ts-1000, "", "", 0),
			event("NextSong", "U1", "free", ts, "Fix You", "Coldplay", 296.12),
		),
		"data/log_data/2018/11/2018-11-02-events.JSON": lines(
			event("NextSong", "U1", "paid", ts+day, "Yellow", "Coldplay", 266.77),
			event("NextSong", "U2", "free", ts+day, "Unknown", "Nobody", 1),
		),
	}
}

func newDriver(t *testing.T, files map[string]string) (*Driver, *memory.Repo, *captureLogger) {
	t.Helper()
	repo := newRepo(t)
	logger := &captureLogger{}
	return &Driver{
		Repo:      repo,
		Processor: &Processor{FS: newFS(t, files), Logger: logger},
		SongDir:   "data/song_data",
		LogDir:    "data/log_data",
		Logger:    logger,
	}, repo, logger
}

func TestDiscover_FiltersAndSorts(t *testing.T) {
	t.Parallel()

	fs := newFS(t, sampleTree())

	got, err := Discover(fs, "data/song_data", ".json")
	require.NoError(t, err)
	require.Equal(t, []string{"data/song_data/A/A/TRAA1.json", "data/song_data/A/B/TRAB2.json"}, got)

	got, err = Discover(fs, "data/log_data", "json")
	require.NoError(t, err)
	require.Equal(t, []string{
		"data/log_data/2018/11/2018-11-01-events.json",
		"data/log_data/2018/11/2018-11-02-events.JSON",
	}, got)

	_, err = Discover(fs, "missing", ".json")
	require.Error(t, err)
}

func TestDriverRun_LoadsSongsThenLogs(t *testing.T) {
	t.Parallel()

	d, repo, logger := newDriver(t, sampleTree())
	stats, err := d.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, stats.FilesFound)
	require.Equal(t, 4, stats.FilesProcessed)
	require.Zero(t, stats.FilesFailed)
	require.Equal(t, 6, stats.Records)
	require.Equal(t, 5, stats.Applied)
	require.Equal(t, 1, stats.Filtered)
	require.Zero(t, stats.Skipped)
	require.Equal(t, 3, stats.Rows[star.TableSongplays])
	require.NotZero(t, stats.Duration)

	require.Equal(t, 2, repo.Count(star.TableSongs))
	require.Equal(t, 1, repo.Count(star.TableArtists))
	require.Equal(t, 2, repo.Count(star.TableTime))
	require.Equal(t, 2, repo.Count(star.TableUsers))
	require.Equal(t, 3, repo.Count(star.TableSongplays))

	plays := repo.Rows(star.TableSongplays)
	require.Equal(t, "SOSONG1", plays[0]["song_id"])
	require.Equal(t, "SOSONG2", plays[1]["song_id"])
	require.Nil(t, plays[2]["song_id"])

	users := repo.Rows(star.TableUsers)
	require.Equal(t, "U1", users[0]["user_id"])
	require.Equal(t, "paid", users[0]["level"])

	require.Contains(t, logger.lines, "2 files found in data/song_data")
	require.Contains(t, logger.lines, "1/2 files processed.")
	require.Contains(t, logger.lines, "2/2 files processed.")
	require.Contains(t, logger.lines, "2 files found in data/log_data")
}

func TestDriverRun_IsIdempotentForDimensions(t *testing.T) {
	t.Parallel()

	d, repo, _ := newDriver(t, sampleTree())
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	stats, err := d.Run(context.Background())
	require.NoError(t, err)
	// Ignored dimension conflicts still count in RunStats.Rows.
	require.Equal(t, 2, stats.Rows[star.TableSongs])
	require.Equal(t, 3, stats.Rows[star.TableSongplays])

	require.Equal(t, 2, repo.Count(star.TableSongs))
	require.Equal(t, 1, repo.Count(star.TableArtists))
	require.Equal(t, 2, repo.Count(star.TableTime))
	require.Equal(t, 2, repo.Count(star.TableUsers))
	// Playback events are facts and append on every run.
	require.Equal(t, 6, repo.Count(star.TableSongplays))
}

func TestDriverRun_StopsOnFirstFailure(t *testing.T) {
	t.Parallel()

	files := sampleTree()
	files["data/song_data/A/A/TRAA0.json"] = strings.Replace(fixYouSong, `"title": "Fix You", `, "", 1)

	d, repo, _ := newDriver(t, files)
	stats, err := d.Run(context.Background())
	require.Error(t, err)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "data/song_data/A/A/TRAA0.json", fe.Path)

	require.Equal(t, 1, stats.FilesFailed)
	require.Zero(t, stats.FilesProcessed)
	require.Zero(t, repo.Count(star.TableSongs))
	require.Zero(t, repo.Count(star.TableSongplays))
}

func TestDriverRun_ContinueOnError(t *testing.T) {
	t.Parallel()

	files := sampleTree()
	files["data/song_data/A/A/TRAA0.json"] = strings.Replace(fixYouSong, `"title": "Fix You", `, "", 1)

	d, repo, _ := newDriver(t, files)
	d.ContinueOnError = true
	stats, err := d.Run(context.Background())
	require.Error(t, err)

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	require.Len(t, stats.Errors, 1)
	require.Equal(t, 1, stats.FilesFailed)
	require.Equal(t, 4, stats.FilesProcessed)
	require.Equal(t, 2, repo.Count(star.TableSongs))
	require.Equal(t, 3, repo.Count(star.TableSongplays))
}

func TestDriverRun_SkipsEmptyDirAndHonorsCancel(t *testing.T) {
	t.Parallel()

	d, repo, logger := newDriver(t, sampleTree())
	d.LogDir = ""
	_, err := d.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.Count(star.TableSongs))
	require.NotContains(t, logger.lines, "2 files found in data/log_data")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d2, repo2, _ := newDriver(t, sampleTree())
	_, err = d2.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, repo2.Count(star.TableSongs))
}

func TestDriverRun_RequiresRepoAndProcessor(t *testing.T) {
	t.Parallel()

	_, err := (&Driver{}).Run(context.Background())
	require.Error(t, err)
}
