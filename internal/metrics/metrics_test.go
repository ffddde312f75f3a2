package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/workforce-service/internal/metrics"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("/jobs", "GET", "200", time.Millisecond)
		m.Decision("Approved")
		m.Attendance("checkin")
		m.Sweep(1, 0)
		m.Notification("decision", errors.New("down"))
	})
}

func TestNotificationCountsByResult(t *testing.T) {
	m := metrics.New()
	m.Notification("decision", nil)
	m.Notification("decision", errors.New("down"))
	m.Notification("decision", errors.New("down"))

	expected := `
# HELP workforce_notifications_total Notification attempts by kind and result (ok, error)
# TYPE workforce_notifications_total counter
workforce_notifications_total{kind="decision",result="error"} 2
workforce_notifications_total{kind="decision",result="ok"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "workforce_notifications_total"))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := metrics.New()
	m.Sweep(3, 1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "workforce_sweep_closed_jobs_total 3")
	assert.Contains(t, rec.Body.String(), "workforce_sweep_failed_jobs_total 1")
}
