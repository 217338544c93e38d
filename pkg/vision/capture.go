package vision

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/posture-police/pkg/camera"
	"gocv.io/x/gocv"
)

// Capture errors.
var (
	// ErrOpen is returned when the device cannot be opened.
	ErrOpen = errors.New("camera: open failed")

	// ErrRead is returned when a frame cannot be read.
	ErrRead = errors.New("camera: read failed")
)

// Capture reads frames from a webcam.
type Capture struct {
	cfg    camera.Config
	device *gocv.VideoCapture
	mu     sync.Mutex
}

// Open opens the device in cfg and applies the requested size and rate.
func OpenCapture(cfg camera.Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid config: %v", ErrOpen, errs)
	}

	device, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %w", ErrOpen, cfg.Device, err)
	}
	if !device.IsOpened() {
		device.Close()
		return nil, fmt.Errorf("%w: device %d not available", ErrOpen, cfg.Device)
	}

	device.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	device.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	device.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	return &Capture{cfg: cfg, device: device}, nil
}

// Config returns the configuration the camera was opened with.
func (c *Capture) Config() camera.Config {
	return c.cfg
}

// Read captures the next frame into dst, mirrored if configured.
func (c *Capture) Read(dst *gocv.Mat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("%w: closed", ErrRead)
	}
	if ok := c.device.Read(dst); !ok || dst.Empty() {
		return ErrRead
	}
	if c.cfg.Mirror {
		gocv.Flip(*dst, dst, 1)
	}
	return nil
}

// Close releases the device. It is safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	err := c.device.Close()
	c.device = nil
	return err
}
