// Package desktop is the native control panel: settings sliders, camera
// toggle, calibration button and the annotated live feed.
package desktop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/teslashibe/posture-police/pkg/alarm"
	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/posture"
)

// Controller is the monitor surface the panel drives.
type Controller interface {
	Settings() monitor.Settings
	UpdateSettings(fn func(*monitor.Settings)) monitor.Settings
	Calibrate(ctx context.Context) (posture.Baseline, error)
	SetCamera(ctx context.Context, enabled bool) error
}

const actionTimeout = 10 * time.Second

type update struct {
	result monitor.TickResult
	frame  []byte
}

// Panel is the desktop window. It implements monitor.Publisher.
type Panel struct {
	ctl    Controller
	logger *slog.Logger
	app    fyne.App
	w      fyne.Window

	sensBind  binding.Float
	delayBind binding.Float

	sensitivity *widget.Slider
	delay       *widget.Slider
	camera      *widget.Check
	calibrate   *widget.Button
	calibrated  *widget.Label
	status      *canvas.Text
	alarm       *widget.Label
	measures    *widget.Label
	frame       *canvas.Image

	latest atomic.Pointer[update]
	wake   chan struct{}

	// shown is the last controller settings reflected in the sliders.
	shown monitor.Settings
}

// New builds the window from the controller's current settings.
func New(a fyne.App, ctl Controller, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Panel{
		ctl:    ctl,
		logger: logger,
		app:    a,
		wake:   make(chan struct{}, 1),
	}
	p.w = a.NewWindow("Posture Police")

	s := ctl.Settings()
	p.shown = s

	p.sensBind = binding.NewFloat()
	_ = p.sensBind.Set(float64(s.Sensitivity))
	p.sensitivity = widget.NewSliderWithData(float64(posture.MinSensitivity), float64(posture.MaxSensitivity), p.sensBind)
	p.sensitivity.Step = 1
	p.sensitivity.OnChangeEnded = func(v float64) { p.setSensitivity(int(math.Round(v))) }

	p.delayBind = binding.NewFloat()
	_ = p.delayBind.Set(s.AlarmDelay.Seconds())
	p.delay = widget.NewSliderWithData(monitor.MinAlarmDelay.Seconds(), monitor.MaxAlarmDelay.Seconds(), p.delayBind)
	p.delay.Step = 1
	p.delay.OnChangeEnded = func(v float64) { p.setDelay(time.Duration(math.Round(v)) * time.Second) }

	p.camera = widget.NewCheck("Start Camera", func(on bool) {
		go p.setCamera(on)
	})
	p.calibrate = widget.NewButtonWithIcon("Calibrate Now", theme.ConfirmIcon(), func() {
		go p.calibrateNow()
	})
	p.calibrate.Disable()

	p.calibrated = widget.NewLabel("Not calibrated")
	p.status = canvas.NewText("Camera off", monitor.ColorRed.RGBA())
	p.status.TextSize = 22
	p.status.TextStyle = fyne.TextStyle{Bold: true}
	p.alarm = widget.NewLabel("")
	p.measures = widget.NewLabel("")

	p.frame = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 640, 480)))
	p.frame.FillMode = canvas.ImageFillContain
	p.frame.SetMinSize(fyne.NewSize(640, 480))

	controls := container.NewVBox(
		widget.NewLabelWithStyle("Settings", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		p.camera,
		widget.NewLabelWithData(binding.FloatToStringWithFormat(p.delayBind, "Alarm delay: %.0fs")),
		p.delay,
		widget.NewLabelWithData(binding.FloatToStringWithFormat(p.sensBind, "Sensitivity: %.0f")),
		p.sensitivity,
		widget.NewSeparator(),
		p.calibrate,
		p.calibrated,
		widget.NewSeparator(),
		p.status,
		p.alarm,
		p.measures,
	)

	split := container.NewHSplit(p.frame, controls)
	split.Offset = 0.7
	p.w.SetContent(split)
	p.w.Resize(fyne.NewSize(1000, 560))
	return p
}

// Window returns the panel window.
func (p *Panel) Window() fyne.Window {
	return p.w
}

// Publish queues the newest tick for display. Older undisplayed ticks are
// dropped.
func (p *Panel) Publish(result monitor.TickResult, frame []byte) {
	p.latest.Store(&update{result: result, frame: frame})
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// ShowAndRun renders published ticks and blocks in the UI event loop. The
// app quits when ctx is cancelled.
func (p *Panel) ShowAndRun(ctx context.Context) {
	closed := make(chan struct{})
	renderCtx, stopRender := context.WithCancel(ctx)
	defer stopRender()
	defer close(closed)

	go p.renderLoop(renderCtx)
	go func() {
		select {
		case <-ctx.Done():
			fyne.Do(p.app.Quit)
		case <-closed:
		}
	}()
	p.w.ShowAndRun()
}

func (p *Panel) renderLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.wake:
		}
		u := p.latest.Swap(nil)
		if u == nil {
			continue
		}
		var img image.Image
		if u.frame != nil {
			decoded, err := jpeg.Decode(bytes.NewReader(u.frame))
			if err != nil {
				p.logger.Debug("decode frame failed", "error", err)
			} else {
				img = decoded
			}
		}
		fyne.Do(func() { p.apply(u.result, img) })
	}
}

// apply updates the widgets. It must run on the UI goroutine.
func (p *Panel) apply(r monitor.TickResult, img image.Image) {
	p.status.Text = r.Label
	p.status.Color = r.Color.RGBA()
	p.status.Refresh()

	if r.Baseline.Calibrated {
		p.calibrated.SetText("Calibrated at " + r.Baseline.CalibratedAt.Format("15:04:05"))
	} else {
		p.calibrated.SetText("Not calibrated")
	}

	p.alarm.SetText(alarmText(r.Alarm))
	p.measures.SetText(measurementText(r))

	p.setCameraState(r.Settings.CameraEnabled)
	p.syncSettings(r.Settings)

	if img != nil {
		p.frame.Image = img
		p.frame.Refresh()
	}
}

func (p *Panel) setCameraState(on bool) {
	if p.camera.Checked != on {
		p.camera.Checked = on
		p.camera.Refresh()
	}
	if on {
		p.calibrate.Enable()
	} else {
		p.calibrate.Disable()
	}
}

// syncSettings moves the sliders when the settings were changed elsewhere
// (dashboard, config reload). A slider being dragged is left alone because
// the controller only changes once the drag ends.
func (p *Panel) syncSettings(s monitor.Settings) {
	if s.Sensitivity != p.shown.Sensitivity {
		_ = p.sensBind.Set(float64(s.Sensitivity))
	}
	if s.AlarmDelay != p.shown.AlarmDelay {
		_ = p.delayBind.Set(s.AlarmDelay.Seconds())
	}
	p.shown = s
}

func (p *Panel) setSensitivity(v int) {
	s := p.ctl.UpdateSettings(func(s *monitor.Settings) {
		s.Sensitivity = posture.Sensitivity(v)
	})
	p.logger.Info("sensitivity changed", "sensitivity", int(s.Sensitivity))
}

func (p *Panel) setDelay(d time.Duration) {
	s := p.ctl.UpdateSettings(func(s *monitor.Settings) {
		s.AlarmDelay = d
	})
	p.logger.Info("alarm delay changed", "alarm_delay", s.AlarmDelay)
}

func (p *Panel) setCamera(on bool) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	err := p.ctl.SetCamera(ctx, on)
	fyne.Do(func() {
		if err != nil {
			dialog.ShowError(err, p.w)
		}
		p.setCameraState(p.ctl.Settings().CameraEnabled)
		if !p.ctl.Settings().CameraEnabled {
			p.status.Text = "Camera off"
			p.status.Color = monitor.ColorRed.RGBA()
			p.status.Refresh()
		}
	})
}

func (p *Panel) calibrateNow() {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	b, err := p.ctl.Calibrate(ctx)
	fyne.Do(func() {
		switch {
		case err == nil:
			p.calibrated.SetText("Calibrated at " + b.CalibratedAt.Format("15:04:05"))
		case errors.Is(err, posture.ErrNoBodyDetected):
			dialog.ShowInformation("Calibration", "No body detected. Sit in view of the camera and try again.", p.w)
		default:
			dialog.ShowError(err, p.w)
		}
	})
}

func alarmText(s alarm.Status) string {
	switch s.Phase {
	case alarm.Ringing:
		return "FIX POSTURE!"
	case alarm.Accumulating:
		return fmt.Sprintf("Alarm in %ds", int(math.Ceil(s.Remaining().Seconds())))
	default:
		return ""
	}
}

func measurementText(r monitor.TickResult) string {
	if r.Evaluation.State == posture.Unknown {
		return ""
	}
	m := r.Evaluation.Measurements
	return fmt.Sprintf("Neck %.3f (min %.3f)\nEyes %.3f (max %.3f)",
		m.NeckLength, m.MinNeckLength, m.EyeLevel, m.MaxEyeLevel)
}
