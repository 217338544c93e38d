package posture

import "errors"

// ErrNoBodyDetected is returned by Calibrate when the landmarks are absent
// or miss an ear, shoulder, or eye point.
var ErrNoBodyDetected = errors.New("posture: no body detected")
