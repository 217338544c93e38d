package posture

import "github.com/teslashibe/posture-police/pkg/pose"

// State is the posture classification of one frame.
type State int

// Posture states. Unknown means no decision was possible (uncalibrated or
// no body) and counts as good for alarm purposes.
const (
	Unknown State = iota
	Good
	Hunching
	Sinking
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Good:
		return "good"
	case Hunching:
		return "hunching"
	case Sinking:
		return "sinking"
	default:
		return "unknown"
	}
}

// Label returns the status text shown to the user.
func (s State) Label() string {
	switch s {
	case Good:
		return "GOOD"
	case Hunching:
		return "HUNCHING!"
	case Sinking:
		return "SINKING!"
	default:
		return "Sit straight & calibrate"
	}
}

// Bad reports whether s should feed the alarm.
func (s State) Bad() bool {
	return s == Hunching || s == Sinking
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Measurements are the values behind a classification.
type Measurements struct {
	NeckLength    float64    `json:"neck_length"`
	MinNeckLength float64    `json:"min_neck_length"`
	EyeLevel      float64    `json:"eye_level"`
	MaxEyeLevel   float64    `json:"max_eye_level"`
	Hunching      bool       `json:"hunching"`
	Sinking       bool       `json:"sinking"`
	Thresholds    Thresholds `json:"thresholds"`
}

// Evaluation is the result of Evaluate.
type Evaluation struct {
	State        State        `json:"state"`
	Measurements Measurements `json:"measurements"`
}

// Evaluate classifies landmarks against baseline. Hunching takes
// precedence over sinking when both hold.
func Evaluate(landmarks pose.LandmarkSet, baseline Baseline, s Sensitivity) Evaluation {
	if !baseline.Calibrated || !landmarks.Detected() {
		return Evaluation{State: Unknown}
	}

	neck, okNeck := NeckLength(landmarks)
	eye, okEye := EyeLevel(landmarks)
	if !okNeck || !okEye {
		return Evaluation{State: Unknown}
	}

	t := ThresholdsFor(s)
	m := Measurements{
		NeckLength:    neck,
		MinNeckLength: baseline.NeckLength * t.HunchRatio,
		EyeLevel:      eye,
		MaxEyeLevel:   baseline.EyeLevel + t.SinkOffset,
		Thresholds:    t,
	}
	m.Hunching = neck < m.MinNeckLength
	m.Sinking = eye-baseline.EyeLevel > t.SinkOffset

	state := Good
	switch {
	case m.Hunching:
		state = Hunching
	case m.Sinking:
		state = Sinking
	}
	return Evaluation{State: state, Measurements: m}
}
