package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTick(t *testing.T) {
	m := New()

	m.ObserveTick("good", true, 20*time.Millisecond)
	m.ObserveTick("unknown", false, 10*time.Millisecond)
	m.ObserveTick("hunching", true, 15*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectionLosses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PostureStates.WithLabelValues("hunching")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TickDuration))
}

func TestCountersAndGauges(t *testing.T) {
	m := New()

	m.ObserveCalibration(true)
	m.ObserveCalibration(false)
	m.ObserveCalibration(false)
	m.ObserveExtractorFailure()
	m.ObserveCaptureFailure()
	m.SetRinging(true, true)
	m.SetRinging(true, false)
	m.SetCamera(true)
	m.SetSensitivity(7)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calibrations.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Calibrations.WithLabelValues("no_body")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractorFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CaptureFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alarms))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlarmRinging))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CameraEnabled))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Sensitivity))

	m.SetRinging(false, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.AlarmRinging))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick("good", true, time.Millisecond)
		m.ObserveCalibration(true)
		m.ObserveExtractorFailure()
		m.ObserveCaptureFailure()
		m.SetRinging(true, true)
		m.SetCamera(true)
		m.SetSensitivity(5)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetSensitivity(5)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "posture_sensitivity 5"), "missing gauge in:\n%s", body)
	assert.Contains(t, body, "go_goroutines")
}
