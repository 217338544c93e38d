// Package alert plays the audible posture alarm.
//
// The monitor calls Sink.Beep on every tick while the alarm is ringing.
// Beep never blocks: a Beeper turns the stream of requests into a tone
// played at a fixed interval on its own goroutine. Stop silences it at
// once; it also goes quiet on its own if requests stop arriving.
package alert

import (
	"fmt"
	"runtime"
	"time"
)

// Sink receives alarm requests.
type Sink interface {
	// Beep requests an alert. It must not block and may be called on every
	// tick while ringing.
	Beep()

	// Stop silences the alert immediately. It is called when the alarm
	// stops ringing and must not block.
	Stop()

	// Close stops playback and releases resources.
	Close() error
}

// Backend names a tone player.
type Backend string

const (
	// BackendAuto picks the best player for the platform.
	BackendAuto Backend = "auto"
	// BackendAplay pipes PCM to ALSA's aplay (Linux).
	BackendAplay Backend = "aplay"
	// BackendAfplay plays a WAV file with afplay (macOS).
	BackendAfplay Backend = "afplay"
	// BackendBell writes the terminal BEL character.
	BackendBell Backend = "bell"
	// BackendMock records tones for tests.
	BackendMock Backend = "mock"
)

// Config holds alert configuration.
type Config struct {
	Backend    Backend       `mapstructure:"backend" json:"backend"`
	Frequency  float64       `mapstructure:"frequency" json:"frequency"`     // Tone frequency in Hz
	Duration   time.Duration `mapstructure:"duration" json:"duration"`       // Tone length
	Interval   time.Duration `mapstructure:"interval" json:"interval"`       // Time between tone starts
	Volume     float64       `mapstructure:"volume" json:"volume"`           // 0.0 to 1.0
	SampleRate int           `mapstructure:"sample_rate" json:"sample_rate"` // PCM sample rate
}

// DefaultConfig returns a 1 kHz, 200 ms tone every half second.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendAuto,
		Frequency:  1000,
		Duration:   200 * time.Millisecond,
		Interval:   500 * time.Millisecond,
		Volume:     0.5,
		SampleRate: 24000,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Frequency <= 0 {
		return fmt.Errorf("alert: frequency must be positive, got %v", c.Frequency)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("alert: duration must be positive, got %v", c.Duration)
	}
	if c.Interval < c.Duration {
		return fmt.Errorf("alert: interval %v shorter than duration %v", c.Interval, c.Duration)
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("alert: volume must be between 0 and 1, got %v", c.Volume)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("alert: sample_rate must be positive, got %d", c.SampleRate)
	}
	return nil
}

// detectBackend returns the best player for the current platform.
func detectBackend() Backend {
	switch runtime.GOOS {
	case "linux":
		return BackendAplay
	case "darwin":
		return BackendAfplay
	default:
		return BackendBell
	}
}
