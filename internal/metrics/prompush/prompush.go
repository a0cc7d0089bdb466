// Package prompush implements metrics.Backend on a private Prometheus
// registry that is pushed to a Pushgateway on Flush.
//
// A batch ETL run exits before any scraper would see it, so nothing here
// exposes /metrics.
package prompush

import (
	"errors"
	"fmt"
	"strings"

	"sparkify/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Backend holds the pipeline collectors and the push target.
type Backend struct {
	reg    *prometheus.Registry
	pusher *push.Pusher

	files        *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	rows         *prometheus.CounterVec
	records      *prometheus.CounterVec
}

// NewBackend registers the pipeline collectors and targets
// <gatewayURL>/metrics/job/<jobName>.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	jobName = strings.TrimSpace(jobName)
	gatewayURL = strings.TrimSpace(gatewayURL)
	if jobName == "" {
		return nil, errors.New("prompush: job name is required")
	}
	if gatewayURL == "" {
		return nil, errors.New("prompush: pushgateway url is required")
	}

	b := &Backend{
		reg: prometheus.NewRegistry(),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.FilesTotal,
			Help: "Input files processed, by format and status.",
		}, []string{"format", "status"}),
		fileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.FileDurationSeconds,
			Help:    "Wall time spent on one input file.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"format", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RowsTotal,
			Help: "Rows written, by destination table.",
		}, []string{"table"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Source records, by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{b.files, b.fileDuration, b.rows, b.records} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}

	b.pusher = push.New(gatewayURL, jobName).Gatherer(b.reg)
	return b, nil
}

// Registry exposes the underlying registry, mainly for tests.
func (b *Backend) Registry() *prometheus.Registry { return b.reg }

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.FilesTotal:
		b.files.WithLabelValues(orUnknown(labels["format"]), orUnknown(labels["status"])).Add(delta)
	case metrics.RowsTotal:
		b.rows.WithLabelValues(orUnknown(labels["table"])).Add(delta)
	case metrics.RecordsTotal:
		b.records.WithLabelValues(orUnknown(labels["outcome"])).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 || name != metrics.FileDurationSeconds {
		return
	}
	b.fileDuration.WithLabelValues(orUnknown(labels["format"]), orUnknown(labels["status"])).Observe(value)
}

// Flush pushes the whole registry, replacing the job's previous group.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

var _ metrics.Backend = (*Backend)(nil)
var _ metrics.Flusher = (*Backend)(nil)
