// Package metrics is the small instrumentation facade used by the pipeline.
//
// Core packages record through the package-level helpers; cmd/etl picks the
// concrete Backend (Datadog, Prometheus Pushgateway, or none) at startup.
// Until SetBackend is called every call is a no-op.
package metrics

import (
	"strings"
	"sync"
	"time"
)

// Metric names understood by the backends.
const (
	FilesTotal          = "sparkify_files_total"
	FileDurationSeconds = "sparkify_file_duration_seconds"
	RowsTotal           = "sparkify_rows_total"
	RecordsTotal        = "sparkify_records_total"
)

// Labels are metric dimensions. Backends ignore labels they do not know.
type Labels map[string]string

// Backend receives counter increments and histogram observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer and submit in batches.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the current backend if it buffers; otherwise it returns nil.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordFile counts one processed input file and observes how long it took.
// format is "song" or "log"; status is "ok" or "error".
func RecordFile(format, status string, d time.Duration) {
	b := current()
	l := Labels{"format": format, "status": status}
	b.IncCounter(FilesTotal, 1, l)
	b.ObserveHistogram(FileDurationSeconds, d.Seconds(), l)
}

// RecordRows counts rows written to table.
func RecordRows(table string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"table": table})
}

// RecordRecords counts source records by outcome (applied, filtered, skipped).
func RecordRecords(outcome string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"outcome": outcome})
}

// ParseTagsCSV parses comma-separated tags like "env:prod,service:etl".
// Blank segments are dropped; an empty input yields nil.
func ParseTagsCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
