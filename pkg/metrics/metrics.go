// Package metrics exposes monitoring counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Frames            prometheus.Counter
	DetectionLosses   prometheus.Counter
	ExtractorFailures prometheus.Counter
	CaptureFailures   prometheus.Counter
	PostureStates     *prometheus.CounterVec
	Calibrations      *prometheus.CounterVec
	Alarms            prometheus.Counter
	AlarmRinging      prometheus.Gauge
	CameraEnabled     prometheus.Gauge
	Sensitivity       prometheus.Gauge
	TickDuration      prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_frames_total",
			Help: "Total frames evaluated",
		}),
		DetectionLosses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_detection_losses_total",
			Help: "Frames with no body detected",
		}),
		ExtractorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_extractor_failures_total",
			Help: "Frames where the pose model returned an error",
		}),
		CaptureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_capture_failures_total",
			Help: "Failed camera reads",
		}),
		PostureStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "posture_state_total",
			Help: "Frames per posture classification",
		}, []string{"state"}),
		Calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "posture_calibrations_total",
			Help: "Calibration attempts by result",
		}, []string{"result"}),
		Alarms: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posture_alarms_total",
			Help: "Times the alarm started ringing",
		}),
		AlarmRinging: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posture_alarm_ringing",
			Help: "1 while the alarm is ringing",
		}),
		CameraEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posture_camera_enabled",
			Help: "1 while the camera is on",
		}),
		Sensitivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posture_sensitivity",
			Help: "Current sensitivity setting (1-10)",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "posture_tick_duration_seconds",
			Help:    "Time spent per capture-evaluate-alert tick",
			Buckets: []float64{.005, .01, .02, .033, .05, .1, .25, .5, 1},
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.Frames, m.DetectionLosses, m.ExtractorFailures, m.CaptureFailures,
		m.PostureStates, m.Calibrations, m.Alarms, m.AlarmRinging,
		m.CameraEnabled, m.Sensitivity, m.TickDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick records one evaluated frame.
func (m *Metrics) ObserveTick(state string, detected bool, d time.Duration) {
	if m == nil {
		return
	}
	m.Frames.Inc()
	if !detected {
		m.DetectionLosses.Inc()
	}
	m.PostureStates.WithLabelValues(state).Inc()
	m.TickDuration.Observe(d.Seconds())
}

// ObserveExtractorFailure counts a pose model error.
func (m *Metrics) ObserveExtractorFailure() {
	if m == nil {
		return
	}
	m.ExtractorFailures.Inc()
}

// ObserveCaptureFailure counts a failed camera read.
func (m *Metrics) ObserveCaptureFailure() {
	if m == nil {
		return
	}
	m.CaptureFailures.Inc()
}

// ObserveCalibration counts a calibration attempt.
func (m *Metrics) ObserveCalibration(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "no_body"
	}
	m.Calibrations.WithLabelValues(result).Inc()
}

// SetRinging updates the ringing gauge, counting rising edges.
func (m *Metrics) SetRinging(ringing, started bool) {
	if m == nil {
		return
	}
	if started {
		m.Alarms.Inc()
	}
	m.AlarmRinging.Set(boolToFloat(ringing))
}

// SetCamera updates the camera gauge.
func (m *Metrics) SetCamera(enabled bool) {
	if m == nil {
		return
	}
	m.CameraEnabled.Set(boolToFloat(enabled))
}

// SetSensitivity updates the sensitivity gauge.
func (m *Metrics) SetSensitivity(s int) {
	if m == nil {
		return
	}
	m.Sensitivity.Set(float64(s))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
