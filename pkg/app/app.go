// Package app wires the posture monitor to its camera, alert sink and user
// interfaces and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/teslashibe/posture-police/internal/config"
	plog "github.com/teslashibe/posture-police/internal/log"
	"github.com/teslashibe/posture-police/pkg/alert"
	"github.com/teslashibe/posture-police/pkg/camera"
	"github.com/teslashibe/posture-police/pkg/desktop"
	"github.com/teslashibe/posture-police/pkg/metrics"
	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/vision"
	"github.com/teslashibe/posture-police/pkg/web"
)

const fyneAppID = "com.teslashibe.posture-police"

// App owns every long-lived component.
type App struct {
	config *config.Config
	loader *config.Loader
	logger *slog.Logger

	metrics *metrics.Metrics
	sink    alert.Sink
	cameras *camera.Manager
	monitor *monitor.Monitor
	web     *web.Server
}

// New validates cfg. loader may be nil when cfg did not come from a file.
func New(cfg *config.Config, loader *config.Loader) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &App{
		config: cfg,
		loader: loader,
		logger: plog.Component("app"),
	}, nil
}

// Init builds the components. Call it after New and before Run.
func (a *App) Init() error {
	a.metrics = metrics.New()

	sink, err := alert.New(a.config.Alert, plog.Component("alert"))
	if err != nil {
		return fmt.Errorf("alert init: %w", err)
	}
	a.sink = sink

	a.cameras = camera.NewManager(a.config.Camera)
	a.cameras.OnConfigChange = a.cameraConfigChanged
	poseCfg := a.config.Pose
	factory := vision.NewSourceFactory(a.cameras, func() (vision.Extractor, error) {
		return vision.NewExtractor(poseCfg)
	}, plog.Component("vision"))

	a.monitor = monitor.New(a.config.MonitorLoop(), factory, a.sink,
		monitor.WithLogger(plog.Component("monitor")),
		monitor.WithMetrics(a.metrics),
		monitor.WithSettings(a.config.Settings()),
	)

	if a.config.Web.Enabled {
		a.web = web.NewServer(a.config.Web.Config, a.monitor,
			web.WithLogger(plog.Component("web")),
			web.WithMetrics(a.metrics),
			web.WithCameraManager(a.cameras),
		)
		a.monitor.Subscribe(a.web)
	}

	if a.loader != nil {
		a.loader.Watch(plog.Component("config"), a.reload)
	}

	s := a.monitor.Settings()
	a.logger.Info("initialized",
		"sensitivity", int(s.Sensitivity),
		"alarm_delay", s.AlarmDelay,
		"pose_backend", poseCfg.Backend,
		"config_file", a.configFile(),
	)
	return nil
}

// reload applies the file keys that changed between prev and next. Values
// set live from the dashboard or desktop are kept unless the file edits
// the same key. Loop timing and outputs only change on restart.
func (a *App) reload(prev, next *config.Config) {
	sensChanged := next.Monitor.Sensitivity != prev.Monitor.Sensitivity
	delayChanged := next.Monitor.AlarmDelay != prev.Monitor.AlarmDelay
	if sensChanged || delayChanged {
		want := next.Settings()
		s := a.monitor.UpdateSettings(func(cur *monitor.Settings) {
			if sensChanged {
				cur.Sensitivity = want.Sensitivity
			}
			if delayChanged {
				cur.AlarmDelay = want.AlarmDelay
			}
		})
		a.logger.Info("settings reloaded", "sensitivity", int(s.Sensitivity), "alarm_delay", s.AlarmDelay)
	}

	if next.Camera != prev.Camera {
		if err := a.cameras.SetConfig(next.Camera); err != nil {
			a.logger.Warn("camera config rejected", "error", err)
		}
	}
}

// cameraConfigChanged reports when a new camera config takes effect. A
// running camera keeps its session and picks the config up on its next
// start.
func (a *App) cameraConfigChanged(cfg camera.Config) error {
	when := "next camera start"
	if !a.monitor.Settings().CameraEnabled {
		when = "camera start"
	}
	a.logger.Info("camera config changed",
		"device", cfg.Device,
		"width", cfg.Width,
		"height", cfg.Height,
		"framerate", cfg.Framerate,
		"applies_on", when,
	)
	return nil
}

func (a *App) configFile() string {
	if a.loader == nil {
		return ""
	}
	return a.loader.File()
}

// Run blocks until ctx is cancelled or, with the desktop UI enabled, the
// window is closed.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	monitorDone := make(chan error, 1)
	go func() { monitorDone <- a.monitor.Run(ctx) }()

	if a.web != nil {
		go func() {
			if err := a.web.ListenAndServe(ctx); err != nil {
				a.logger.Error("web dashboard stopped", "error", err)
				if !a.config.Desktop.Enabled {
					cancel()
				}
			}
		}()
	}

	if a.config.Monitor.CameraOnStart {
		go func() {
			if err := a.monitor.SetCamera(ctx, true); err != nil {
				a.logger.Error("camera did not start", "error", err)
			}
		}()
	}

	if a.config.Desktop.Enabled {
		panel := desktop.New(fyneapp.NewWithID(fyneAppID), a.monitor, plog.Component("desktop"))
		a.monitor.Subscribe(panel)
		panel.ShowAndRun(ctx)
		cancel()
	} else {
		<-ctx.Done()
	}

	if err := <-monitorDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown releases the alert sink. The camera is closed by the monitor
// when Run returns.
func (a *App) Shutdown() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("alert close failed", "error", err)
		}
	}
	a.logger.Info("goodbye")
}
