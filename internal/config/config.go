// Package config loads posture-police settings from defaults, an optional
// YAML file and POSTURE_* environment variables. The file is only ever
// read; nothing is written back.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/teslashibe/posture-police/pkg/alert"
	"github.com/teslashibe/posture-police/pkg/camera"
	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/pose"
	"github.com/teslashibe/posture-police/pkg/posture"
	"github.com/teslashibe/posture-police/pkg/web"
)

// EnvPrefix prefixes every environment override, e.g.
// POSTURE_MONITOR_SENSITIVITY.
const EnvPrefix = "POSTURE"

// Config is the top-level configuration.
type Config struct {
	Monitor MonitorConfig `mapstructure:"monitor"`
	Camera  camera.Config `mapstructure:"camera"`
	Pose    pose.Config   `mapstructure:"pose"`
	Alert   alert.Config  `mapstructure:"alert"`
	Web     WebConfig     `mapstructure:"web"`
	Desktop DesktopConfig `mapstructure:"desktop"`
	Log     LogConfig     `mapstructure:"log"`
}

// MonitorConfig holds the user settings and loop timing.
type MonitorConfig struct {
	Sensitivity        int           `mapstructure:"sensitivity"`
	AlarmDelay         time.Duration `mapstructure:"alarm_delay"`
	CameraOnStart      bool          `mapstructure:"camera_on_start"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	MaxCaptureFailures int           `mapstructure:"max_capture_failures"`
}

// WebConfig controls the loopback dashboard.
type WebConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	web.Config `mapstructure:",squash"`
}

// DesktopConfig controls the native window.
type DesktopConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig selects the log level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text", "json" or empty for GO_ENV based
}

// Settings returns the initial monitor settings.
func (c *Config) Settings() monitor.Settings {
	return monitor.Settings{
		Sensitivity: posture.Sensitivity(c.Monitor.Sensitivity),
		AlarmDelay:  c.Monitor.AlarmDelay,
	}.Normalized()
}

// MonitorLoop returns the loop timing.
func (c *Config) MonitorLoop() monitor.Config {
	return monitor.Config{
		TickInterval:       c.Monitor.TickInterval,
		MaxCaptureFailures: c.Monitor.MaxCaptureFailures,
	}
}

// Validate reports every invalid value.
func (c *Config) Validate() error {
	var errs []error

	if s := c.Monitor.Sensitivity; s < int(posture.MinSensitivity) || s > int(posture.MaxSensitivity) {
		errs = append(errs, fmt.Errorf("monitor.sensitivity must be between %d and %d, got %d",
			posture.MinSensitivity, posture.MaxSensitivity, s))
	}
	if d := c.Monitor.AlarmDelay; d < monitor.MinAlarmDelay || d > monitor.MaxAlarmDelay {
		errs = append(errs, fmt.Errorf("monitor.alarm_delay must be between %v and %v, got %v",
			monitor.MinAlarmDelay, monitor.MaxAlarmDelay, d))
	}
	if c.Monitor.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.tick_interval must be positive, got %v", c.Monitor.TickInterval))
	}
	for _, msg := range c.Camera.Validate() {
		errs = append(errs, fmt.Errorf("camera: %s", msg))
	}
	switch c.Pose.Backend {
	case "openpose", "movenet":
	default:
		errs = append(errs, fmt.Errorf("pose.backend must be openpose or movenet, got %q", c.Pose.Backend))
	}
	if err := c.Alert.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !c.Web.Enabled && !c.Desktop.Enabled {
		errs = append(errs, errors.New("at least one of web.enabled and desktop.enabled must be set"))
	}
	if c.Web.Enabled && (c.Web.Port < 1 || c.Web.Port > 65535) {
		errs = append(errs, fmt.Errorf("web.port must be between 1 and 65535, got %d", c.Web.Port))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	settings := monitor.DefaultSettings()
	loop := monitor.DefaultConfig()
	v.SetDefault("monitor.sensitivity", int(settings.Sensitivity))
	v.SetDefault("monitor.alarm_delay", settings.AlarmDelay)
	v.SetDefault("monitor.camera_on_start", false)
	v.SetDefault("monitor.tick_interval", loop.TickInterval)
	v.SetDefault("monitor.max_capture_failures", loop.MaxCaptureFailures)

	cam := camera.DefaultConfig()
	v.SetDefault("camera.device", cam.Device)
	v.SetDefault("camera.width", cam.Width)
	v.SetDefault("camera.height", cam.Height)
	v.SetDefault("camera.framerate", cam.Framerate)
	v.SetDefault("camera.mirror", cam.Mirror)
	v.SetDefault("camera.quality", cam.Quality)

	p := pose.DefaultConfig()
	v.SetDefault("pose.backend", p.Backend)
	v.SetDefault("pose.model_path", p.ModelPath)
	v.SetDefault("pose.config_path", p.ConfigPath)
	v.SetDefault("pose.ort_library", p.ORTLibrary)
	v.SetDefault("pose.min_confidence", p.MinConfidence)
	v.SetDefault("pose.input_width", p.InputWidth)
	v.SetDefault("pose.input_height", p.InputHeight)

	a := alert.DefaultConfig()
	v.SetDefault("alert.backend", string(a.Backend))
	v.SetDefault("alert.frequency", a.Frequency)
	v.SetDefault("alert.duration", a.Duration)
	v.SetDefault("alert.interval", a.Interval)
	v.SetDefault("alert.volume", a.Volume)
	v.SetDefault("alert.sample_rate", a.SampleRate)

	w := web.DefaultConfig()
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.host", w.Host)
	v.SetDefault("web.port", w.Port)

	v.SetDefault("desktop.enabled", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// Loader reads the configuration and watches the file for edits.
type Loader struct {
	v       *viper.Viper
	current *Config
}

// NewLoader creates a loader. An empty path searches for posture.yaml in
// the working directory and $HOME/.config/posture-police.
func NewLoader(path string) *Loader {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("posture")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/posture-police")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v}
}

// Override pins key to value above the file and environment. Overrides
// survive reloads, so a command-line flag keeps winning after the file is
// edited.
func (l *Loader) Override(key string, value any) {
	l.v.Set(key, value)
}

// Load reads the file, if any, and decodes the result. A missing file is
// not an error unless the path was given explicitly.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read %s: %w", l.v.ConfigFileUsed(), err)
		}
	}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return cfg, nil
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// File returns the config file in use, or "" when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls fn with the previous and the new configuration each time the
// file changes, so callers can apply only what was edited. Invalid edits
// are logged and skipped. It does nothing without a file.
func (l *Loader) Watch(logger *slog.Logger, fn func(prev, next *Config)) {
	if l.File() == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			logger.Error("config reload failed", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		prev := l.current
		l.current = cfg
		if prev == nil {
			prev = cfg
		}
		fn(prev, cfg)
	})
	l.v.WatchConfig()
}
