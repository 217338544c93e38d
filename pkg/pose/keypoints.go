package pose

import (
	"errors"
	"fmt"
)

// ErrModelNotFound is returned when a backend's model file is missing.
var ErrModelNotFound = errors.New("pose: model file not found")

// ExtractorError wraps a failure of the pose model itself.
type ExtractorError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *ExtractorError) Error() string {
	return fmt.Sprintf("pose [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *ExtractorError) Unwrap() error {
	return e.Err
}

// WrapError wraps err with backend context. Errors that already carry a
// backend are returned unchanged.
func WrapError(backend string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExtractorError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractorError{Backend: backend, Err: err}
}

// Config holds pose backend configuration.
type Config struct {
	Backend       string  `mapstructure:"backend"`        // "openpose" or "movenet"
	ModelPath     string  `mapstructure:"model_path"`     // Path to the model file
	ConfigPath    string  `mapstructure:"config_path"`    // Optional model config (prototxt for caffe models)
	ORTLibrary    string  `mapstructure:"ort_library"`    // onnxruntime shared library, movenet only
	MinConfidence float64 `mapstructure:"min_confidence"` // Minimum keypoint score (default 0.5)
	InputWidth    int     `mapstructure:"input_width"`    // Model input width
	InputHeight   int     `mapstructure:"input_height"`   // Model input height
}

// DefaultConfig returns defaults for the OpenPose COCO model.
func DefaultConfig() Config {
	return Config{
		Backend:       "openpose",
		ModelPath:     "models/pose_iter_440000.caffemodel",
		ConfigPath:    "models/pose_deploy_linevec.prototxt",
		MinConfidence: 0.5,
		InputWidth:    368,
		InputHeight:   368,
	}
}

// FromKeypoints builds a set from keypoint scores using a backend index
// mapping. Keypoints scoring below minConfidence are dropped.
func FromKeypoints(mapping map[int]Point, keypoints []Keypoint, minConfidence float64) LandmarkSet {
	var s LandmarkSet
	for idx, p := range mapping {
		if idx < 0 || idx >= len(keypoints) {
			continue
		}
		kp := keypoints[idx]
		if kp.Score < minConfidence {
			continue
		}
		s.Set(p, Landmark{X: clamp01(kp.X), Y: clamp01(kp.Y), Visibility: kp.Score})
	}
	return s
}

// Keypoint is a raw backend keypoint in normalized coordinates.
type Keypoint struct {
	X, Y  float64
	Score float64
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
