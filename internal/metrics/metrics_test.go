package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ChunkSent()
	m.ChunkSent()
	m.Upload(nil)
	m.Upload(errors.New("boom"))
	m.Dropped("corrupt")

	require.Equal(t, 2.0, testutil.ToFloat64(m.chunksSent))
	require.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues(ResultSuccess)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.uploads.WithLabelValues(ResultFailure)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reconcileDropped.WithLabelValues("corrupt")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m.ChunkSent()
		m.Upload(nil)
		m.Download(nil)
		m.Delete(nil)
		m.ReconcileDone(1)
		m.Dropped("x")
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Download(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), `discloud_downloads_total{result="success"} 1`))
}
