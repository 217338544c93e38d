// Package vision connects the webcam and a pose backend to the monitor and
// draws the posture overlay onto published frames.
package vision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/posture-police/pkg/camera"
	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/pose"
	"gocv.io/x/gocv"
)

// Extractor finds body landmarks in a frame.
type Extractor interface {
	// Extract returns the landmarks in frame. A frame without a body yields
	// an absent set and a nil error.
	Extract(frame gocv.Mat) (pose.LandmarkSet, error)

	// Name returns the backend name (e.g., "openpose", "movenet").
	Name() string

	// Close releases model resources.
	Close() error
}

// Source implements monitor.LandmarkSource over a webcam and an Extractor.
type Source struct {
	capture   *Capture
	extractor Extractor
	quality   int
	logger    *slog.Logger
}

// NewSource wraps an open capture and extractor. The source owns both and
// closes them in Close.
func NewSource(capture *Capture, extractor Extractor, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		capture:   capture,
		extractor: extractor,
		quality:   capture.Config().Quality,
		logger:    logger,
	}
}

// Next reads one frame and runs the pose model on it.
func (s *Source) Next(ctx context.Context) (monitor.Frame, error) {
	if err := ctx.Err(); err != nil {
		return monitor.Frame{}, err
	}

	img := gocv.NewMat()
	if err := s.capture.Read(&img); err != nil {
		img.Close()
		return monitor.Frame{}, err
	}

	frame := monitor.Frame{Image: &annotator{img: img, quality: s.quality}}
	landmarks, err := s.extractor.Extract(img)
	if err != nil {
		frame.Err = pose.WrapError(s.extractor.Name(), err)
		return frame, nil
	}
	frame.Landmarks = landmarks
	return frame, nil
}

// Close stops the camera and releases the model.
func (s *Source) Close() error {
	camErr := s.capture.Close()
	exErr := s.extractor.Close()
	if camErr != nil {
		return camErr
	}
	return exErr
}

// ExtractorFactory creates the pose backend.
type ExtractorFactory func() (Extractor, error)

// NewSourceFactory returns a monitor.SourceFactory that opens the camera
// with the manager's current config and a fresh extractor.
func NewSourceFactory(cameras *camera.Manager, newExtractor ExtractorFactory, logger *slog.Logger) monitor.SourceFactory {
	return func(ctx context.Context) (monitor.LandmarkSource, error) {
		cfg := cameras.GetConfig()
		capture, err := OpenCapture(cfg)
		if err != nil {
			return nil, err
		}
		extractor, err := newExtractor()
		if err != nil {
			capture.Close()
			return nil, fmt.Errorf("load pose model: %w", err)
		}
		if logger != nil {
			logger.Info("vision source opened",
				"device", cfg.Device,
				"width", cfg.Width,
				"height", cfg.Height,
				"backend", extractor.Name(),
			)
		}
		return NewSource(capture, extractor, logger), nil
	}
}
