package datadog

import (
	"context"
	"errors"
	"net/http"
	"os"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"sparkify/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

// quietOptions returns options whose ticker never fires during a test.
func quietOptions(fs *fakeSubmitter, unix int64) Options {
	return Options{
		JobName:    "job1",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(unix, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	}
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
//
// Edge cases:
//   - ENV wins over DD_ENV.
//   - Whitespace-only env vars are ignored.
//   - If neither is set, "env:unknown" is returned.
func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapInitErr(t *testing.T) {
	if got := wrapInitErr(nil); got != nil {
		t.Fatalf("wrapInitErr(nil)=%v, want nil", got)
	}

	in := errors.New("boom")
	got := wrapInitErr(in)
	if !strings.Contains(got.Error(), "datadog metrics init:") {
		t.Fatalf("wrapInitErr prefix missing: %v", got)
	}
	if !errors.Is(got, in) {
		t.Fatalf("wrapInitErr did not wrap original error: got=%v", got)
	}
}

func TestFormatStatusKey(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		status     string
		wantFormat string
		wantStatus string
	}{
		{name: "normal", format: "song", status: "ok", wantFormat: "song", wantStatus: "ok"},
		{name: "empty_format", format: "", status: "error", wantFormat: "unknown", wantStatus: "error"},
		{name: "empty_status", format: "log", status: "", wantFormat: "log", wantStatus: "unknown"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			format, status := splitFormatStatusKey(formatStatusKey(tc.format, tc.status))
			if format != tc.wantFormat || status != tc.wantStatus {
				t.Fatalf("roundtrip got=(%q,%q), want=(%q,%q)", format, status, tc.wantFormat, tc.wantStatus)
			}
		})
	}

	t.Run("split_without_separator_defaults_unknown_status", func(t *testing.T) {
		format, status := splitFormatStatusKey("no-sep")
		if format != "no-sep" || status != "unknown" {
			t.Fatalf("splitFormatStatusKey()=(%q,%q), want=(%q,%q)", format, status, "no-sep", "unknown")
		}
	})
}

// TestWithTags verifies tag concatenation and immutability.
func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:etl"}
	got := withTags(base, "table:songs")
	want := []string{"env:test", "job:etl", "table:songs"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

func TestCountAndGaugeSeries(t *testing.T) {
	now := int64(1234567)

	g := gaugeSeries("sparkify.test.gauge", 3.14, []string{"env:test"}, now)
	if g.Type == nil || *g.Type != datadogV2.METRICINTAKETYPE_GAUGE {
		t.Fatalf("gauge Type=%v, want GAUGE", g.Type)
	}
	c := countSeries("sparkify.test.count", 2, []string{"env:test"}, now)
	if c.Type == nil || *c.Type != datadogV2.METRICINTAKETYPE_COUNT {
		t.Fatalf("count Type=%v, want COUNT", c.Type)
	}
	for _, s := range []datadogV2.MetricSeries{g, c} {
		if len(s.Points) != 1 {
			t.Fatalf("%s Points.len=%d, want 1", s.Metric, len(s.Points))
		}
		if s.Points[0].Timestamp == nil || *s.Points[0].Timestamp != now {
			t.Fatalf("%s Timestamp=%v, want %d", s.Metric, s.Points[0].Timestamp, now)
		}
	}
	if *g.Points[0].Value != 3.14 || *c.Points[0].Value != 2 {
		t.Fatalf("values gauge=%v count=%v", *g.Points[0].Value, *c.Points[0].Value)
	}
}

// TestAddPercentiles verifies the six gauges and that the input is not sorted in place.
func TestAddPercentiles(t *testing.T) {
	base := []string{"env:test", "job:etl"}
	key := formatStatusKey("log", "ok")

	orig := []float64{5, 1, 3, 2, 4}
	in := append([]float64(nil), orig...)

	var series []datadogV2.MetricSeries
	addPercentiles(&series, base, "sparkify.file.duration_seconds", key, in, 999)

	if len(series) != 6 {
		t.Fatalf("series.len=%d, want 6", len(series))
	}
	if !reflect.DeepEqual(in, orig) {
		t.Fatalf("samples mutated: got %v, want %v", in, orig)
	}

	var foundSamples bool
	for _, s := range series {
		if !contains(s.Tags, "format:log") || !contains(s.Tags, "status:ok") {
			t.Fatalf("series %q tags=%v, want format:log and status:ok", s.Metric, s.Tags)
		}
		if s.Metric == "sparkify.file.duration_seconds.samples" {
			foundSamples = true
			if *s.Points[0].Value != 5 {
				t.Fatalf("samples gauge value=%v, want 5", *s.Points[0].Value)
			}
		}
		if s.Metric == "sparkify.file.duration_seconds.max" && *s.Points[0].Value != 5 {
			t.Fatalf("max gauge value=%v, want 5", *s.Points[0].Value)
		}
	}
	if !foundSamples {
		t.Fatalf("did not find samples gauge series")
	}

	addPercentiles(&series, base, "x", key, nil, 999)
	if len(series) != 6 {
		t.Fatalf("empty samples appended series")
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	fs := &fakeSubmitter{}
	opts := quietOptions(fs, 123)
	opts.JobName = ""
	opts.FlushEvery = 0
	opts.Tags = []string{"service:etl"}

	b, err := NewBackend(context.Background(), opts)
	if err != nil {
		t.Fatalf("NewBackend() err=%v, want nil", err)
	}
	defer func() { _ = b.Close() }()

	if !contains(b.baseTags, "job:sparkify_etl") {
		t.Fatalf("baseTags missing job:sparkify_etl: %v", b.baseTags)
	}
	if !contains(b.baseTags, "service:etl") {
		t.Fatalf("baseTags missing service:etl: %v", b.baseTags)
	}
	if b.flushEvery != 60*time.Second {
		t.Fatalf("flushEvery=%s, want 60s", b.flushEvery)
	}
}

func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"format": "song", "status": "ok"})
	b.ObserveHistogram(metrics.FileDurationSeconds, 0.5, metrics.Labels{"format": "song", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"table": "songs"})
	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"outcome": "applied"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
	if len(b.fileCounts) != 0 || len(b.rowCounts) != 0 || len(b.recordCounts) != 0 || len(b.fileDurations) != 0 {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, _ := fs.last()
	var names []string
	for _, s := range payload.Series {
		names = append(names, s.Metric)
		if s.Metric == "sparkify.rows.total" && !contains(s.Tags, "table:songs") {
			t.Fatalf("rows series tags=%v, want table:songs", s.Tags)
		}
	}
	sort.Strings(names)

	for _, w := range []string{
		"sparkify.files.total",
		"sparkify.rows.total",
		"sparkify.records.total",
		"sparkify.file.duration_seconds.p50",
		"sparkify.file.duration_seconds.samples",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, names)
		}
	}
}

func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

func TestFlush_ReturnsSubmitError(t *testing.T) {
	fs := &fakeSubmitter{err: errors.New("403 forbidden")}
	b, err := NewBackend(context.Background(), quietOptions(fs, 1000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"table": "users"})
	if err := b.Flush(); err == nil {
		t.Fatalf("Flush() err=nil, want submit error")
	}
	// Buffers were reset even though submission failed.
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil with empty buffers", err)
	}
}

// TestLoopAndClose verifies the background loop flushes periodically and Close performs a final flush.
func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}

	b, err := NewBackend(context.Background(), Options{
		JobName:    "job1",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"table": "time"})

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fs.count() >= 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"table": "time"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

func TestBackend_ConcurrentAccess(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 3000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	workers := runtime.GOMAXPROCS(0) * 4
	iters := 2000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"format": "log", "status": "ok"})
				b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"table": "songplays"})
				b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"outcome": "filtered"})
				b.ObserveHistogram(metrics.FileDurationSeconds, 0.01, metrics.Labels{"format": "log", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	b.mu.Lock()
	got := b.rowCounts["songplays"]
	b.mu.Unlock()
	if got != float64(workers*iters) {
		t.Fatalf("rowCounts[songplays]=%v, want %d", got, workers*iters)
	}

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}
}

func TestIncCounterAndObserveHistogram_EdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), quietOptions(fs, 4000))
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	// Ignored: non-positive delta, missing table/outcome, unknown names, negative observation.
	b.IncCounter(metrics.FilesTotal, 0, metrics.Labels{"format": "song", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{})
	b.IncCounter(metrics.RecordsTotal, 1, nil)
	b.IncCounter("unknown_total", 1, metrics.Labels{"x": "y"})
	b.ObserveHistogram(metrics.FileDurationSeconds, -1, metrics.Labels{"format": "song", "status": "ok"})
	b.ObserveHistogram("unknown_seconds", 1, nil)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("submit calls=%d, want 0 for ignored input", fs.count())
	}

	// Missing file labels default to "unknown".
	b.IncCounter(metrics.FilesTotal, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	payload, ok := fs.last()
	if !ok || len(payload.Series) != 1 {
		t.Fatalf("payload=%+v, want one series", payload)
	}
	if !contains(payload.Series[0].Tags, "format:unknown") || !contains(payload.Series[0].Tags, "status:unknown") {
		t.Fatalf("tags=%v, want format:unknown and status:unknown", payload.Series[0].Tags)
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
