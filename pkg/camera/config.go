// Package camera holds the runtime-configurable webcam capture settings.
package camera

import "fmt"

// Config holds webcam capture parameters. Changes apply the next time the
// camera is started.
type Config struct {
	Device    int  `json:"device" mapstructure:"device"`       // Video device index
	Width     int  `json:"width" mapstructure:"width"`         // Requested frame width
	Height    int  `json:"height" mapstructure:"height"`       // Requested frame height
	Framerate int  `json:"framerate" mapstructure:"framerate"` // Requested FPS
	Mirror    bool `json:"mirror" mapstructure:"mirror"`       // Flip horizontally, like a mirror
	Quality   int  `json:"quality" mapstructure:"quality"`     // JPEG quality 1-100 for published frames
}

// Capture limits.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns 640x480 at 30 FPS, mirrored.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     640,
		Height:    480,
		Framerate: 30,
		Mirror:    true,
		Quality:   80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device < 0 {
		errors = append(errors, "device must be >= 0")
	}
	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, fmt.Sprintf("width must be between %d and %d", MinWidth, MaxWidth))
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, fmt.Sprintf("height must be between %d and %d", MinHeight, MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, fmt.Sprintf("framerate must be between 1 and %d", MaxFramerate))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
