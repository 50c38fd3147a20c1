package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ServesCollectors(t *testing.T) {
	m := New()
	m.IncStreamStart("accepted")
	m.IncStreamStart("rejected")
	m.IncStreamFailure("ack_timeout")
	m.IncQuotaReject()
	m.IncWorkerLost()
	m.ObserveDispatch(0.42)

	gaugesRefreshed := false
	handler := m.Handler(func() {
		gaugesRefreshed = true
		m.SetActiveStreams(3)
		m.SetOnlineWorkers(2)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gaugesRefreshed)

	body := rec.Body.String()
	assert.Contains(t, body, `ezstream_stream_starts_total{outcome="accepted"} 1`)
	assert.Contains(t, body, `ezstream_stream_failures_total{reason="ack_timeout"} 1`)
	assert.Contains(t, body, "ezstream_active_streams 3")
	assert.Contains(t, body, "ezstream_online_workers 2")
	assert.Contains(t, body, "ezstream_quota_rejects_total 1")
	assert.Contains(t, body, "ezstream_dispatch_duration_seconds_count 1")
}
