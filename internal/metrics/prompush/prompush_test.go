package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"sparkify/internal/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewBackend_RequiresJobAndURL(t *testing.T) {
	t.Parallel()

	_, err := NewBackend("", "http://localhost:9091")
	require.Error(t, err)
	_, err = NewBackend("sparkify", "  ")
	require.Error(t, err)
}

func TestBackend_RecordsIntoRegistry(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("sparkify", "http://localhost:9091")
	require.NoError(t, err)

	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"format": "song", "status": "ok"})
	b.IncCounter(metrics.FilesTotal, 1, metrics.Labels{"format": "song", "status": "ok"})
	b.IncCounter(metrics.RowsTotal, 3, metrics.Labels{"table": "songplays"})
	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"outcome": "filtered"})
	b.IncCounter(metrics.RowsTotal, 0, metrics.Labels{"table": "songplays"})
	b.IncCounter("unknown_total", 1, nil)
	b.ObserveHistogram(metrics.FileDurationSeconds, 0.25, metrics.Labels{"format": "song", "status": "ok"})
	b.ObserveHistogram(metrics.FileDurationSeconds, -1, metrics.Labels{"format": "song", "status": "ok"})

	require.Equal(t, 2.0, testutil.ToFloat64(b.files.WithLabelValues("song", "ok")))
	require.Equal(t, 3.0, testutil.ToFloat64(b.rows.WithLabelValues("songplays")))
	require.Equal(t, 7.0, testutil.ToFloat64(b.records.WithLabelValues("filtered")))
	require.Equal(t, 1, testutil.CollectAndCount(b.fileDuration))
}

func TestBackend_MissingLabelsBecomeUnknown(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("sparkify", "http://localhost:9091")
	require.NoError(t, err)

	b.IncCounter(metrics.RowsTotal, 1, nil)
	require.Equal(t, 1.0, testutil.ToFloat64(b.rows.WithLabelValues("unknown")))
}

func TestFlush_PushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(raw)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b, err := NewBackend("sparkify_etl", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.RowsTotal, 2, metrics.Labels{"table": "users"})

	require.NoError(t, b.Flush())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, http.MethodPut, method)
	require.Equal(t, "/metrics/job/sparkify_etl", path)
	require.NotEmpty(t, body)
}

func TestFlush_GatewayErrorIsWrapped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("sparkify_etl", srv.URL)
	require.NoError(t, err)

	err = b.Flush()
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "prompush: push:"), err.Error())
}
