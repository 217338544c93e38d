// Package posture turns body landmarks into posture classifications
// relative to a calibrated baseline.
package posture

import (
	"sync"
	"time"

	"github.com/teslashibe/posture-police/pkg/pose"
)

// calibrationPoints must all be present to calibrate.
var calibrationPoints = []pose.Point{
	pose.LeftEar, pose.RightEar,
	pose.LeftShoulder, pose.RightShoulder,
	pose.LeftEye, pose.RightEye,
}

// Baseline is the user's good-posture reference.
type Baseline struct {
	NeckLength   float64   `json:"neck_length"` // shoulder.y - ear.y
	EyeLevel     float64   `json:"eye_level"`   // mean eye y
	Calibrated   bool      `json:"calibrated"`
	CalibratedAt time.Time `json:"calibrated_at,omitempty"`
}

// Store holds the session baseline. Each calibration overwrites it.
type Store struct {
	mu       sync.RWMutex
	baseline Baseline
	now      func() time.Time
}

// NewStore returns an uncalibrated store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Calibrate measures a new baseline from landmarks and stores it. On error
// the previous baseline is kept.
func (s *Store) Calibrate(landmarks pose.LandmarkSet) (Baseline, error) {
	b, err := Measure(landmarks)
	if err != nil {
		return Baseline{}, err
	}
	b.CalibratedAt = s.now()

	s.mu.Lock()
	s.baseline = b
	s.mu.Unlock()
	return b, nil
}

// Baseline returns a snapshot of the current baseline.
func (s *Store) Baseline() Baseline {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseline
}

// Reset returns the store to the uncalibrated state.
func (s *Store) Reset() {
	s.mu.Lock()
	s.baseline = Baseline{}
	s.mu.Unlock()
}

// Measure computes a calibrated baseline without storing it.
func Measure(landmarks pose.LandmarkSet) (Baseline, error) {
	if !landmarks.Detected() || !landmarks.Has(calibrationPoints...) {
		return Baseline{}, ErrNoBodyDetected
	}
	neck, ok := NeckLength(landmarks)
	if !ok {
		return Baseline{}, ErrNoBodyDetected
	}
	eye, ok := EyeLevel(landmarks)
	if !ok {
		return Baseline{}, ErrNoBodyDetected
	}
	return Baseline{NeckLength: neck, EyeLevel: eye, Calibrated: true}, nil
}

// NeckLength returns the vertical ear-to-shoulder distance, averaged over
// the sides where both points are present.
func NeckLength(landmarks pose.LandmarkSet) (float64, bool) {
	sides := [][2]pose.Point{
		{pose.LeftEar, pose.LeftShoulder},
		{pose.RightEar, pose.RightShoulder},
	}
	sum, n := 0.0, 0
	for _, side := range sides {
		ear, okEar := landmarks.Get(side[0])
		shoulder, okShoulder := landmarks.Get(side[1])
		if !okEar || !okShoulder {
			continue
		}
		sum += shoulder.Y - ear.Y
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// EyeLevel returns the mean y of the present eye points.
func EyeLevel(landmarks pose.LandmarkSet) (float64, bool) {
	sum, n := 0.0, 0
	for _, p := range []pose.Point{pose.LeftEye, pose.RightEye} {
		if lm, ok := landmarks.Get(p); ok {
			sum += lm.Y
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
