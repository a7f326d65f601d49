package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanCompleted(t *testing.T) {
	m := New()

	m.ScanCompleted(false, nil)
	m.ScanCompleted(false, nil)
	m.ScanCompleted(true, nil)
	m.ScanCompleted(false, errors.New("permission denied"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scans.WithLabelValues("unchanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scans.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changes))
}

func TestBuildAndSessionCounters(t *testing.T) {
	m := New()

	m.BuildCompleted(1500*time.Millisecond, nil)
	m.BuildCompleted(time.Second, errors.New("exit status 101"))
	m.BuildShared()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.MessageAnswered()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.builds.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sharedBuilds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ScanCompleted(true, nil)
		m.BuildCompleted(time.Second, nil)
		m.BuildShared()
		m.SessionOpened()
		m.SessionClosed()
		m.MessageAnswered()
		m.RequestServed("/", http.StatusOK)
		m.RegisterGauge("x", "x", func() float64 { return 0 })
	})
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesRegisteredCollectors(t *testing.T) {
	m := New()
	m.RegisterGauge("dirty", "Whether a rebuild is pending", func() float64 { return 1 })
	m.RequestServed("/current.wasm", http.StatusInternalServerError)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "wasmreload_dirty 1")
	assert.Contains(t, string(body), `wasmreload_http_requests_total{code="500",route="/current.wasm"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
