// Package monitor runs the per-frame posture loop: capture, extract,
// evaluate, debounce, then alert and render.
//
// A single goroutine (Run) owns the session, the camera source and the
// alarm. User actions arrive as commands and are applied between ticks, so
// a tick never observes a half-applied calibration.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/posture-police/pkg/alert"
	"github.com/teslashibe/posture-police/pkg/metrics"
	"github.com/teslashibe/posture-police/pkg/pose"
	"github.com/teslashibe/posture-police/pkg/posture"
)

// Sentinel errors for user actions.
var (
	// ErrCameraOff is returned by Calibrate while the camera is off.
	ErrCameraOff = errors.New("monitor: camera is off")

	// ErrStopped is returned when the monitor loop is not running.
	ErrStopped = errors.New("monitor: stopped")

	// ErrCameraOpen wraps camera initialization failures.
	ErrCameraOpen = errors.New("monitor: camera failed to start")
)

// Frame is one captured image and the landmarks found in it.
type Frame struct {
	Landmarks pose.LandmarkSet

	// Err is a pose model failure for this frame. Landmarks are absent
	// when it is set.
	Err error

	// Image renders the tick result onto the frame. May be nil.
	Image Annotator
}

// Annotator draws a tick result onto its frame.
type Annotator interface {
	// Annotate returns the frame with the overlay as JPEG.
	Annotate(result TickResult) ([]byte, error)

	// Close releases the frame.
	Close() error
}

// LandmarkSource produces frames. Next may block for model inference.
type LandmarkSource interface {
	// Next captures and analyzes the next frame. An error means the camera
	// read failed; pose model failures are reported in Frame.Err.
	Next(ctx context.Context) (Frame, error)

	// Close stops the camera.
	Close() error
}

// SourceFactory opens the camera and pose model.
type SourceFactory func(ctx context.Context) (LandmarkSource, error)

// Publisher is a passive render target for tick results.
type Publisher interface {
	// Publish receives each tick. frame is the annotated JPEG or nil.
	// It is called from the monitor goroutine and must not block.
	Publish(result TickResult, frame []byte)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(result TickResult, frame []byte)

// Publish calls f.
func (f PublisherFunc) Publish(result TickResult, frame []byte) {
	f(result, frame)
}

// Config holds loop timing.
type Config struct {
	TickInterval       time.Duration // ~30 Hz by default
	MaxCaptureFailures int           // consecutive failed reads before the camera is stopped
}

// DefaultConfig returns a 30 Hz loop that gives up on the camera after one
// second of failed reads.
func DefaultConfig() Config {
	return Config{
		TickInterval:       33 * time.Millisecond,
		MaxCaptureFailures: 30,
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithMetrics records loop metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithSettings sets the initial settings. CameraEnabled is ignored; the
// camera starts off.
func WithSettings(s Settings) Option {
	return func(m *Monitor) {
		s.CameraEnabled = false
		m.settings = s.Normalized()
	}
}

type commandKind int

const (
	cmdCalibrate commandKind = iota
	cmdCamera
)

type command struct {
	kind    commandKind
	enabled bool
	reply   chan reply
}

type reply struct {
	baseline posture.Baseline
	err      error
}

// Monitor drives the posture loop.
type Monitor struct {
	cfg     Config
	factory SourceFactory
	sink    alert.Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	settingsMu sync.RWMutex
	settings   Settings

	pubMu      sync.RWMutex
	publishers []Publisher

	cmds    chan command
	done    chan struct{}
	running atomic.Bool
	last    atomic.Pointer[TickResult]

	// Owned by the loop goroutine.
	source          LandmarkSource
	session         *Session
	pending         []chan reply
	captureFailures int
	extractorStreak int
	ringing         bool
	lastState       posture.State
}

// New creates a monitor. sink may be nil to disable audio.
func New(cfg Config, factory SourceFactory, sink alert.Sink, opts ...Option) *Monitor {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	if cfg.MaxCaptureFailures <= 0 {
		cfg.MaxCaptureFailures = DefaultConfig().MaxCaptureFailures
	}

	m := &Monitor{
		cfg:      cfg,
		factory:  factory,
		sink:     sink,
		logger:   slog.Default(),
		now:      time.Now,
		settings: DefaultSettings(),
		cmds:     make(chan command, 8),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.metrics.SetSensitivity(int(m.settings.Sensitivity))
	return m
}

// Subscribe adds a render target.
func (m *Monitor) Subscribe(p Publisher) {
	m.pubMu.Lock()
	m.publishers = append(m.publishers, p)
	m.pubMu.Unlock()
}

// Settings returns the current settings.
func (m *Monitor) Settings() Settings {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.settings
}

// UpdateSettings applies fn to the settings and clamps the result. The
// camera flag is owned by SetCamera and cannot be changed here.
func (m *Monitor) UpdateSettings(fn func(*Settings)) Settings {
	m.settingsMu.Lock()
	s := m.settings
	camera := s.CameraEnabled
	fn(&s)
	s = s.Normalized()
	s.CameraEnabled = camera
	m.settings = s
	m.settingsMu.Unlock()

	m.metrics.SetSensitivity(int(s.Sensitivity))
	return s
}

func (m *Monitor) setCameraFlag(enabled bool) {
	m.settingsMu.Lock()
	m.settings.CameraEnabled = enabled
	m.settingsMu.Unlock()
	m.metrics.SetCamera(enabled)
}

// Last returns the most recent tick result.
func (m *Monitor) Last() (TickResult, bool) {
	r := m.last.Load()
	if r == nil {
		return TickResult{}, false
	}
	return *r, true
}

// Calibrate captures a baseline from the next frame. It returns
// posture.ErrNoBodyDetected when that frame has no usable body and
// ErrCameraOff when the camera is off.
func (m *Monitor) Calibrate(ctx context.Context) (posture.Baseline, error) {
	r, err := m.send(ctx, command{kind: cmdCalibrate})
	if err != nil {
		return posture.Baseline{}, err
	}
	return r.baseline, r.err
}

// SetCamera starts or stops the camera. Stopping discards the session.
func (m *Monitor) SetCamera(ctx context.Context, enabled bool) error {
	r, err := m.send(ctx, command{kind: cmdCamera, enabled: enabled})
	if err != nil {
		return err
	}
	return r.err
}

func (m *Monitor) send(ctx context.Context, cmd command) (reply, error) {
	cmd.reply = make(chan reply, 1)
	select {
	case m.cmds <- cmd:
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-m.done:
		return reply{}, ErrStopped
	}
	select {
	case r := <-cmd.reply:
		return r, nil
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-m.done:
		return reply{}, ErrStopped
	}
}

// Run drives the loop until ctx is cancelled. It may only be called once.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return fmt.Errorf("monitor: already running")
	}
	defer close(m.done)
	defer m.stopCamera("shutdown")

	ticker := time.NewTicker(m.cfg.TickInterval)
	defer ticker.Stop()

	m.logger.Info("monitor started", "tick_interval", m.cfg.TickInterval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return ctx.Err()
		case cmd := <-m.cmds:
			m.handle(ctx, cmd)
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdCalibrate:
		if m.source == nil {
			cmd.reply <- reply{err: ErrCameraOff}
			return
		}
		m.pending = append(m.pending, cmd.reply)
	case cmdCamera:
		if cmd.enabled {
			cmd.reply <- reply{err: m.startCamera(ctx)}
		} else {
			m.stopCamera("user")
			cmd.reply <- reply{}
		}
	}
}

func (m *Monitor) startCamera(ctx context.Context) error {
	if m.source != nil {
		return nil
	}
	src, err := m.factory(ctx)
	if err != nil {
		m.logger.Error("camera failed to start", "error", err)
		m.setCameraFlag(false)
		return fmt.Errorf("%w: %w", ErrCameraOpen, err)
	}

	m.source = src
	m.session = NewSession(m.now())
	m.captureFailures = 0
	m.extractorStreak = 0
	m.ringing = false
	m.lastState = posture.Unknown
	m.setCameraFlag(true)

	m.logger.Info("camera started", "session", m.session.ID)
	return nil
}

func (m *Monitor) stopCamera(reason string) {
	if m.source == nil {
		return
	}
	for _, ch := range m.pending {
		ch <- reply{err: ErrCameraOff}
	}
	m.pending = nil

	if err := m.source.Close(); err != nil {
		m.logger.Warn("camera close failed", "error", err)
	}
	id := m.session.ID
	m.source = nil
	m.session = nil
	if m.ringing {
		m.silence()
	}
	m.ringing = false
	m.metrics.SetRinging(false, false)
	m.setCameraFlag(false)

	m.logger.Info("camera stopped", "session", id, "reason", reason)

	off := TickResult{
		Time:     m.now(),
		Settings: m.Settings(),
		Color:    ColorRed,
		Label:    "Camera off",
	}
	m.last.Store(&off)
	m.publish(off, nil)
}

// tick runs one capture-evaluate-alert pass.
func (m *Monitor) tick(ctx context.Context) {
	if m.source == nil {
		return
	}
	start := m.now()

	frame, err := m.source.Next(ctx)
	if err != nil {
		m.captureFailures++
		m.metrics.ObserveCaptureFailure()
		m.logger.Warn("camera read failed", "error", err, "consecutive", m.captureFailures)
		if m.captureFailures >= m.cfg.MaxCaptureFailures {
			m.logger.Error("camera lost", "failures", m.captureFailures)
			m.stopCamera("capture failures")
			return
		}
		frame = Frame{}
	} else {
		m.captureFailures = 0
	}
	if frame.Image != nil {
		defer frame.Image.Close()
	}

	if frame.Err != nil {
		m.extractorStreak++
		m.metrics.ObserveExtractorFailure()
		if m.extractorStreak == 1 {
			m.logger.Warn("pose extraction failed", "error", frame.Err)
		} else {
			m.logger.Debug("pose extraction failed", "error", frame.Err, "consecutive", m.extractorStreak)
		}
		frame.Landmarks = pose.LandmarkSet{}
	} else {
		m.extractorStreak = 0
	}

	m.applyCalibrations(frame.Landmarks)

	now := m.now()
	result := m.session.Tick(frame.Landmarks, m.Settings(), now)

	if result.Alarm.Ringing && m.sink != nil {
		m.sink.Beep()
	}
	m.trackTransitions(result)
	m.metrics.ObserveTick(result.Evaluation.State.String(), result.Detected, m.now().Sub(start))

	var jpeg []byte
	if frame.Image != nil {
		jpeg, err = frame.Image.Annotate(result)
		if err != nil {
			m.logger.Debug("annotate frame failed", "error", err)
			jpeg = nil
		}
	}

	m.last.Store(&result)
	m.publish(result, jpeg)
}

// applyCalibrations answers pending calibration requests with this tick's
// landmarks, before the tick is evaluated.
func (m *Monitor) applyCalibrations(landmarks pose.LandmarkSet) {
	for _, ch := range m.pending {
		b, err := m.session.Calibrate(landmarks)
		m.metrics.ObserveCalibration(err == nil)
		if err != nil {
			m.logger.Info("calibration failed", "session", m.session.ID, "error", err)
		} else {
			m.logger.Info("calibrated",
				"session", m.session.ID,
				"neck_length", b.NeckLength,
				"eye_level", b.EyeLevel,
			)
		}
		ch <- reply{baseline: b, err: err}
	}
	m.pending = nil
}

func (m *Monitor) trackTransitions(r TickResult) {
	if state := r.Evaluation.State; state != m.lastState {
		m.logger.Debug("posture changed", "from", m.lastState, "to", state)
		m.lastState = state
	}
	switch {
	case r.Alarm.Ringing && !m.ringing:
		m.logger.Warn("posture alarm", "state", r.Evaluation.State, "bad_for", r.Alarm.Elapsed.Round(time.Second))
		m.metrics.SetRinging(true, true)
	case !r.Alarm.Ringing && m.ringing:
		m.logger.Info("posture alarm cleared")
		m.silence()
		m.metrics.SetRinging(false, false)
	}
	m.ringing = r.Alarm.Ringing
}

func (m *Monitor) silence() {
	if m.sink != nil {
		m.sink.Stop()
	}
}

func (m *Monitor) publish(r TickResult, frame []byte) {
	m.pubMu.RLock()
	defer m.pubMu.RUnlock()
	for _, p := range m.publishers {
		p.Publish(r, frame)
	}
}
