package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-git/go-billy/v5/osfs"

	"sparkify/internal/config"
	"sparkify/internal/logging"
	"sparkify/internal/metrics"
	"sparkify/internal/metrics/datadog"
	"sparkify/internal/metrics/prompush"
	"sparkify/internal/pipeline"
	"sparkify/internal/star"
	"sparkify/internal/storage"

	// register all backends with the storage factory.
	// config specifies which to use but we need to build in support for all of them.
	_ "sparkify/internal/storage/all"
)

// runner executes one load over a prepared store.
type runner interface {
	Run(ctx context.Context) (pipeline.RunStats, error)
	Close()
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	loadConfig  func(path string, overrides map[string]any) (*config.Config, error)
	initMetrics func(ctx context.Context, jobName string, m config.Metrics) (func(), error)
	newRunner   func(ctx context.Context, cfg *config.Config) (runner, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		initMetrics: initMetrics,
		newRunner:   newRunner,
	}
}

// main loads the run configuration, wires logging and metrics, and loads the
// song and log directories into the configured store.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// flagKeys maps CLI flags onto config keys. Only flags set on the command
// line override the lower layers.
var flagKeys = map[string]string{
	"song-dir":          "input.song_dir",
	"log-dir":           "input.log_dir",
	"ext":               "input.extension",
	"storage-kind":      "storage.kind",
	"dsn":               "storage.dsn",
	"tolerance":         "runtime.duration_tolerance",
	"continue-on-error": "runtime.continue_on_error",
	"dry-run":           "runtime.dry_run",
	"metrics-backend":   "metrics.backend",
	"pushgateway-url":   "metrics.pushgateway_url",
	"log-level":         "log.level",
}

// runMain is main without process globals. It returns the exit code:
// 0 on success, 1 on a config/metrics/storage/run failure, 2 on misuse.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "optional YAML config path")
	fs.String("song-dir", "", "song metadata directory")
	fs.String("log-dir", "", "activity log directory")
	fs.String("ext", "", "input file extension (default .json)")
	fs.String("storage-kind", "", "storage backend: postgres|sqlite|mssql|memory")
	fs.String("dsn", "", "storage DSN")
	fs.Float64("tolerance", 0, "song duration match tolerance in seconds")
	fs.Bool("continue-on-error", false, "keep going after a failed file")
	fs.Bool("dry-run", false, "load into an in-memory store")
	fs.String("metrics-backend", "", "metrics backend: none|datadog|pushgateway")
	fs.String("pushgateway-url", "", "Pushgateway base URL")
	fs.String("log-level", "", "log level: trace|debug|info|warn|error")
	validateOnly := fs.Bool("validate", false, "validate the configuration and exit")
	verbose := fs.Bool("v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "usage: etl [-config path.yaml] [flags]\nunexpected argument %q\n", fs.Arg(0))
		return 2
	}

	overrides := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.(flag.Getter).Get()
		}
	})
	if *verbose {
		overrides["log.level"] = "debug"
	}

	cfg, err := deps.loadConfig(*cfgPath, overrides)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *validateOnly {
		fmt.Fprintln(stdout, "config ok")
		return 0
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	cleanup, err := deps.initMetrics(ctx, cfg.Job, cfg.Metrics)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	r, err := deps.newRunner(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "open storage: %v\n", err)
		return 1
	}
	defer r.Close()

	logging.Info().
		Str("job", cfg.Job).
		Str("storage", cfg.Storage.Kind).
		Bool("dry_run", cfg.Runtime.DryRun).
		Str("song_dir", cfg.Input.SongDir).
		Str("log_dir", cfg.Input.LogDir).
		Msg("etl: starting")

	stats, err := r.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "ok files=%d records=%d applied=%d filtered=%d skipped=%d\n",
		stats.FilesProcessed, stats.Records, stats.Applied, stats.Filtered, stats.Skipped)
	return 0
}

// ---- metrics ----

type metricsBackend interface {
	Close() error
}

type pushBackend interface {
	Flush() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPromBackend = func(jobName, gatewayURL string) (pushBackend, error) {
		return prompush.NewBackend(jobName, gatewayURL)
	}
	setMetricsBackend = func(b any) {
		if mb, ok := b.(metrics.Backend); ok {
			metrics.SetBackend(mb)
		}
	}
	logPrintf = func(format string, v ...any) {
		logging.Warn().Msgf(format, v...)
	}
)

// initMetrics installs the configured metrics backend. The returned cleanup
// is never nil and flushes whatever the backend buffered.
func initMetrics(ctx context.Context, jobName string, m config.Metrics) (func(), error) {
	noop := func() {}

	switch m.Backend {
	case "", "none", "noop":
		return noop, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       m.Tags,
			FlushEvery: m.FlushEvery,
		})
		if err != nil {
			return noop, fmt.Errorf("datadog: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
		}, nil

	case "pushgateway", "prom":
		b, err := newPromBackend(jobName, m.PushgatewayURL)
		if err != nil {
			return noop, fmt.Errorf("pushgateway: %w", err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Flush(); err != nil {
				logPrintf("metrics: pushgateway flush error: %v", err)
			}
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", m.Backend)
	}
}

// ---- storage + pipeline ----

type storeRunner struct {
	repo   storage.Repository
	driver *pipeline.Driver
}

func (r *storeRunner) Run(ctx context.Context) (pipeline.RunStats, error) {
	return r.driver.Run(ctx)
}

func (r *storeRunner) Close() { r.repo.Close() }

// newRunner opens the store, creates the star schema and builds the driver.
// Dry runs load into the in-memory backend.
func newRunner(ctx context.Context, cfg *config.Config) (runner, error) {
	songDir, err := absDir(cfg.Input.SongDir)
	if err != nil {
		return nil, err
	}
	logDir, err := absDir(cfg.Input.LogDir)
	if err != nil {
		return nil, err
	}

	sc := storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN}
	if cfg.Runtime.DryRun {
		sc = storage.Config{Kind: "memory"}
	}
	repo, err := storage.Open(ctx, sc)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureTables(ctx, star.Tables()); err != nil {
		repo.Close()
		return nil, fmt.Errorf("ensure tables: %w", err)
	}

	logger := logging.NewPrinter("pipeline")
	return &storeRunner{
		repo: repo,
		driver: &pipeline.Driver{
			Repo: repo,
			Processor: &pipeline.Processor{
				FS:                osfs.New("/"),
				DurationTolerance: cfg.Runtime.DurationTolerance,
				Logger:            logger,
			},
			SongDir:         songDir,
			LogDir:          logDir,
			Extension:       cfg.Input.Extension,
			ContinueOnError: cfg.Runtime.ContinueOnError,
			Logger:          logger,
		},
	}, nil
}

// absDir resolves dir against the working directory; the filesystem is
// rooted at "/". Empty stays empty so the driver skips that pass.
func absDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dir, err)
	}
	return abs, nil
}
