package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/posture-police/pkg/alarm"
	"github.com/teslashibe/posture-police/pkg/alert"
	"github.com/teslashibe/posture-police/pkg/metrics"
	"github.com/teslashibe/posture-police/pkg/pose"
	"github.com/teslashibe/posture-police/pkg/posture"
)

func body(earY, shoulderY, eyeY float64) pose.LandmarkSet {
	return pose.NewLandmarkSet(map[pose.Point]pose.Landmark{
		pose.LeftEye:       {X: 0.53, Y: eyeY},
		pose.RightEye:      {X: 0.47, Y: eyeY},
		pose.LeftEar:       {X: 0.58, Y: earY},
		pose.RightEar:      {X: 0.42, Y: earY},
		pose.LeftShoulder:  {X: 0.70, Y: shoulderY},
		pose.RightShoulder: {X: 0.30, Y: shoulderY},
	})
}

var (
	upright  = body(0.40, 0.52, 0.30) // neck 0.12, eyes 0.30
	slouched = body(0.45, 0.52, 0.30) // neck 0.07
)

type fakeSource struct {
	mu      sync.Mutex
	current Frame
	errs    []error
	closed  bool
}

// push sets the frame returned by every following read.
func (f *fakeSource) push(fr Frame) {
	f.mu.Lock()
	f.current = fr
	f.mu.Unlock()
}

func (f *fakeSource) failReads(err error, n int) {
	f.mu.Lock()
	for range n {
		f.errs = append(f.errs, err)
	}
	f.mu.Unlock()
}

func (f *fakeSource) Next(ctx context.Context) (Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return Frame{}, err
	}
	return f.current, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeAnnotator struct {
	closed bool
	seen   TickResult
}

func (a *fakeAnnotator) Annotate(r TickResult) ([]byte, error) {
	a.seen = r
	return []byte("jpeg"), nil
}

func (a *fakeAnnotator) Close() error {
	a.closed = true
	return nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }
func newClock() *clock                   { return &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)} }

type recorder struct {
	mu      sync.Mutex
	results []TickResult
	frames  [][]byte
}

func (r *recorder) Publish(res TickResult, frame []byte) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.frames = append(r.frames, frame)
	r.mu.Unlock()
}

func (r *recorder) last() TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[len(r.results)-1]
}

type harness struct {
	m     *Monitor
	src   *fakeSource
	sink  *alert.MockSink
	clock *clock
	pub   *recorder
}

// newHarness builds a monitor whose loop is driven by hand through handle
// and tick.
func newHarness(t *testing.T, settings Settings) *harness {
	t.Helper()
	h := &harness{
		src:   &fakeSource{},
		sink:  alert.NewMockSink(),
		clock: newClock(),
		pub:   &recorder{},
	}
	factory := func(context.Context) (LandmarkSource, error) { return h.src, nil }
	h.m = New(DefaultConfig(), factory, h.sink,
		WithClock(h.clock.now),
		WithSettings(settings),
		WithMetrics(metrics.New()),
	)
	h.m.Subscribe(h.pub)
	return h
}

func (h *harness) startCamera(t *testing.T) {
	t.Helper()
	r := h.command(command{kind: cmdCamera, enabled: true})
	if r.err != nil {
		t.Fatalf("start camera: %v", r.err)
	}
}

func (h *harness) command(cmd command) reply {
	cmd.reply = make(chan reply, 1)
	h.m.handle(context.Background(), cmd)
	select {
	case r := <-cmd.reply:
		return r
	default:
		return reply{err: errPending}
	}
}

var errPending = errors.New("pending")

// calibrate queues a calibration and runs one tick with landmarks.
func (h *harness) calibrate(t *testing.T, landmarks pose.LandmarkSet) reply {
	t.Helper()
	cmd := command{kind: cmdCalibrate, reply: make(chan reply, 1)}
	h.m.handle(context.Background(), cmd)
	h.src.push(Frame{Landmarks: landmarks})
	h.tick()
	select {
	case r := <-cmd.reply:
		return r
	default:
		t.Fatal("calibration not answered by tick")
		return reply{}
	}
}

func (h *harness) tick() TickResult {
	h.m.tick(context.Background())
	return h.pub.last()
}

func (h *harness) runFor(d time.Duration, landmarks pose.LandmarkSet) TickResult {
	h.src.push(Frame{Landmarks: landmarks})
	var last TickResult
	for elapsed := time.Duration(0); elapsed < d; elapsed += 100 * time.Millisecond {
		h.clock.advance(100 * time.Millisecond)
		last = h.tick()
	}
	return last
}

func quickSettings() Settings {
	s := DefaultSettings()
	s.AlarmDelay = 5 * time.Second
	return s
}

func TestCalibrateWithCameraOff(t *testing.T) {
	h := newHarness(t, DefaultSettings())

	r := h.command(command{kind: cmdCalibrate})
	if !errors.Is(r.err, ErrCameraOff) {
		t.Errorf("calibrate with camera off = %v, want ErrCameraOff", r.err)
	}
}

func TestUncalibratedTicksAreNeutral(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)

	r := h.runFor(10*time.Second, slouched)
	if r.Evaluation.State != posture.Unknown {
		t.Errorf("State = %v, want Unknown before calibration", r.Evaluation.State)
	}
	if r.Alarm.Ringing || h.sink.Beeps() != 0 {
		t.Error("alarm rang before calibration")
	}
	if r.Label != "Sit straight & calibrate" || r.Color != ColorRed {
		t.Errorf("label/color = %q/%v", r.Label, r.Color)
	}
}

func TestSlouchRingsAfterDelay(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)

	if r := h.calibrate(t, upright); r.err != nil {
		t.Fatalf("calibrate: %v", r.err)
	}

	r := h.runFor(2*time.Second, upright)
	if r.Evaluation.State != posture.Good || r.Color != ColorGreen {
		t.Fatalf("upright: state %v color %v, want Good/green", r.Evaluation.State, r.Color)
	}

	r = h.runFor(4900*time.Millisecond, slouched)
	if r.Evaluation.State != posture.Hunching {
		t.Fatalf("slouched: state %v, want Hunching", r.Evaluation.State)
	}
	if r.Alarm.Ringing || h.sink.Beeps() != 0 || h.sink.Stops() != 0 {
		t.Fatal("rang before the delay elapsed")
	}

	r = h.runFor(200*time.Millisecond, slouched)
	if !r.Alarm.Ringing {
		t.Fatal("not ringing after the delay")
	}
	if h.sink.Beeps() == 0 {
		t.Error("ringing without a beep")
	}

	r = h.runFor(100*time.Millisecond, upright)
	if r.Alarm.Ringing || r.Alarm.Phase != alarm.Idle {
		t.Errorf("good posture did not clear the alarm: %+v", r.Alarm)
	}
	if got := h.sink.Stops(); got != 1 {
		t.Errorf("sink stopped %d times on sitting up, want 1", got)
	}
	beeps := h.sink.Beeps()
	h.runFor(time.Second, upright)
	if h.sink.Beeps() != beeps {
		t.Error("beeped while posture was good")
	}
}

func TestCalibrationResetsAlarm(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)
	h.calibrate(t, upright)

	if r := h.runFor(6*time.Second, slouched); !r.Alarm.Ringing {
		t.Fatal("setup: alarm should be ringing")
	}

	r := h.calibrate(t, slouched)
	if r.err != nil {
		t.Fatalf("recalibrate: %v", r.err)
	}
	last := h.pub.last()
	if last.Alarm.Ringing || last.Evaluation.State != posture.Good {
		t.Errorf("after recalibrating on the current pose: state %v ringing %v", last.Evaluation.State, last.Alarm.Ringing)
	}
	if h.sink.Stops() != 1 {
		t.Errorf("sink stopped %d times after recalibrating, want 1", h.sink.Stops())
	}
}

func TestFailedCalibrationKeepsBaseline(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)
	first := h.calibrate(t, upright)

	noShoulders := upright
	noShoulders.Delete(pose.LeftShoulder)
	noShoulders.Delete(pose.RightShoulder)

	r := h.calibrate(t, noShoulders)
	if !errors.Is(r.err, posture.ErrNoBodyDetected) {
		t.Fatalf("calibrate without shoulders = %v, want ErrNoBodyDetected", r.err)
	}
	if got := h.pub.last().Baseline; got != first.baseline {
		t.Errorf("baseline = %+v, want %+v", got, first.baseline)
	}
}

func TestDetectionLossResetsAlarm(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)
	h.calibrate(t, upright)

	h.runFor(4*time.Second, slouched)
	r := h.runFor(100*time.Millisecond, pose.LandmarkSet{})
	if r.Evaluation.State != posture.Unknown || r.Alarm.Phase != alarm.Idle {
		t.Fatalf("lost body: state %v phase %v, want Unknown/idle", r.Evaluation.State, r.Alarm.Phase)
	}

	if r := h.runFor(4*time.Second, slouched); r.Alarm.Ringing {
		t.Error("alarm rang without a full delay after detection loss")
	}
}

func TestExtractorFailureIsDetectionLoss(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)
	h.calibrate(t, upright)
	h.runFor(4*time.Second, slouched)

	h.src.push(Frame{Landmarks: slouched, Err: errors.New("model crashed")})
	h.clock.advance(100 * time.Millisecond)
	r := h.tick()
	if r.Detected || r.Evaluation.State != posture.Unknown {
		t.Errorf("extractor failure: detected %v state %v, want absent/Unknown", r.Detected, r.Evaluation.State)
	}
	if r.Alarm.Phase != alarm.Idle {
		t.Errorf("phase = %v, want idle", r.Alarm.Phase)
	}
}

func TestSettingsChangeAppliesNextTick(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	h.startCamera(t)
	h.calibrate(t, upright)

	if r := h.runFor(3*time.Second, slouched); r.Alarm.Ringing {
		t.Fatal("rang before the 30s delay")
	}
	h.m.UpdateSettings(func(s *Settings) { s.AlarmDelay = 2 * time.Second })

	h.clock.advance(100 * time.Millisecond)
	if r := h.tick(); !r.Alarm.Ringing {
		t.Error("shortened delay not applied on the next tick")
	}
}

func TestSensitivityChangesClassification(t *testing.T) {
	h := newHarness(t, Settings{Sensitivity: 1, AlarmDelay: 5 * time.Second})
	h.startCamera(t)
	h.calibrate(t, upright)

	// neck 0.105 is 87.5% of the baseline: fine at 1, hunching at 10.
	mild := body(0.415, 0.52, 0.30)
	if r := h.runFor(100*time.Millisecond, mild); r.Evaluation.State != posture.Good {
		t.Fatalf("sensitivity 1: state %v, want Good", r.Evaluation.State)
	}
	h.m.UpdateSettings(func(s *Settings) { s.Sensitivity = 10 })
	if r := h.runFor(100*time.Millisecond, mild); r.Evaluation.State != posture.Hunching {
		t.Errorf("sensitivity 10: state %v, want Hunching", r.Evaluation.State)
	}
}

func TestCameraOffDiscardsSession(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)
	h.calibrate(t, upright)
	h.runFor(6*time.Second, slouched)

	pending := command{kind: cmdCalibrate, reply: make(chan reply, 1)}
	h.m.handle(context.Background(), pending)

	h.command(command{kind: cmdCamera, enabled: false})

	if !h.src.isClosed() {
		t.Error("source not closed")
	}
	if h.sink.Stops() != 1 {
		t.Errorf("ringing sink stopped %d times on camera off, want 1", h.sink.Stops())
	}
	if r := <-pending.reply; !errors.Is(r.err, ErrCameraOff) {
		t.Errorf("pending calibration = %v, want ErrCameraOff", r.err)
	}
	off := h.pub.last()
	if off.Label != "Camera off" || off.Alarm.Ringing || off.Baseline.Calibrated {
		t.Errorf("camera off result = %+v", off)
	}
	if h.m.Settings().CameraEnabled {
		t.Error("CameraEnabled still set")
	}

	h.src = &fakeSource{}
	h.m.factory = func(context.Context) (LandmarkSource, error) { return h.src, nil }
	h.startCamera(t)
	if r := h.runFor(100*time.Millisecond, slouched); r.Baseline.Calibrated {
		t.Error("baseline survived a camera restart")
	}
}

func TestCameraOpenFailure(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	h.m.factory = func(context.Context) (LandmarkSource, error) {
		return nil, errors.New("no such device")
	}

	r := h.command(command{kind: cmdCamera, enabled: true})
	if !errors.Is(r.err, ErrCameraOpen) {
		t.Errorf("err = %v, want ErrCameraOpen", r.err)
	}
	if h.m.Settings().CameraEnabled {
		t.Error("CameraEnabled set after open failure")
	}
	h.m.tick(context.Background())
	if len(h.pub.results) != 0 {
		t.Error("tick published with the camera off")
	}
}

func TestCaptureFailuresStopCamera(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	h.startCamera(t)
	h.src.failReads(errors.New("read failed"), h.m.cfg.MaxCaptureFailures)

	for range h.m.cfg.MaxCaptureFailures {
		h.m.tick(context.Background())
	}
	if !h.src.isClosed() || h.m.Settings().CameraEnabled {
		t.Error("camera still running after repeated read failures")
	}
}

func TestAnnotatedFramePublished(t *testing.T) {
	h := newHarness(t, quickSettings())
	h.startCamera(t)
	a := &fakeAnnotator{}
	h.src.push(Frame{Landmarks: upright, Image: a})

	r := h.tick()
	if !a.closed {
		t.Error("frame not closed after the tick")
	}
	if a.seen.SessionID != r.SessionID {
		t.Error("annotator did not see the tick result")
	}
	if got := string(h.pub.frames[len(h.pub.frames)-1]); got != "jpeg" {
		t.Errorf("published frame = %q, want jpeg", got)
	}
	if last, ok := h.m.Last(); !ok || last.SessionID != r.SessionID {
		t.Error("Last() does not return the latest tick")
	}
}

func TestUpdateSettingsClampsAndKeepsCamera(t *testing.T) {
	h := newHarness(t, DefaultSettings())
	h.startCamera(t)

	s := h.m.UpdateSettings(func(s *Settings) {
		s.Sensitivity = 40
		s.AlarmDelay = -time.Second
		s.CameraEnabled = false
	})
	if s.Sensitivity != posture.MaxSensitivity || s.AlarmDelay != MinAlarmDelay {
		t.Errorf("settings = %+v, want clamped", s)
	}
	if !s.CameraEnabled {
		t.Error("UpdateSettings changed the camera flag")
	}
}

func TestRunServesCommands(t *testing.T) {
	src := &fakeSource{}
	src.push(Frame{Landmarks: upright})
	m := New(Config{TickInterval: 5 * time.Millisecond}, func(context.Context) (LandmarkSource, error) {
		return src, nil
	}, alert.NewMockSink())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if err := m.SetCamera(ctx, true); err != nil {
		t.Fatalf("SetCamera: %v", err)
	}
	b, err := m.Calibrate(ctx)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if !b.Calibrated {
		t.Error("baseline not calibrated")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if !src.isClosed() {
		t.Error("source not closed on shutdown")
	}
	if _, err := m.Calibrate(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Calibrate after stop = %v, want ErrStopped", err)
	}
	if err := m.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}
