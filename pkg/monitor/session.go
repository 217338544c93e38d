package monitor

import (
	"image/color"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/posture-police/pkg/alarm"
	"github.com/teslashibe/posture-police/pkg/pose"
	"github.com/teslashibe/posture-police/pkg/posture"
)

// Color is the overlay color for a tick: green for good posture, red for
// everything else.
type Color string

// Overlay colors.
const (
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// RGBA returns the color value.
func (c Color) RGBA() color.RGBA {
	switch c {
	case ColorGreen:
		return color.RGBA{G: 255, A: 255}
	default:
		return color.RGBA{R: 255, A: 255}
	}
}

// TickResult is everything one tick produces for the render targets.
type TickResult struct {
	SessionID  string             `json:"session_id"`
	Time       time.Time          `json:"time"`
	Detected   bool               `json:"detected"`
	Landmarks  pose.LandmarkSet   `json:"-"`
	Evaluation posture.Evaluation `json:"evaluation"`
	Alarm      alarm.Status       `json:"alarm"`
	Baseline   posture.Baseline   `json:"baseline"`
	Settings   Settings           `json:"settings"`
	Color      Color              `json:"color"`
	Label      string             `json:"label"`
}

// Session is the in-memory state of one camera session. All of it is
// discarded when the camera stops.
type Session struct {
	ID        string
	StartedAt time.Time

	store *posture.Store
	alarm *alarm.Debouncer
}

// NewSession starts an uncalibrated session.
func NewSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		StartedAt: now,
		store:     posture.NewStore(),
		alarm:     alarm.New(),
	}
}

// Calibrate records a new baseline from landmarks and resets the alarm. On
// failure the previous baseline and alarm state are kept.
func (s *Session) Calibrate(landmarks pose.LandmarkSet) (posture.Baseline, error) {
	b, err := s.store.Calibrate(landmarks)
	if err != nil {
		return posture.Baseline{}, err
	}
	s.alarm.Reset()
	return b, nil
}

// Baseline returns the current baseline.
func (s *Session) Baseline() posture.Baseline {
	return s.store.Baseline()
}

// Reset clears the baseline and the alarm.
func (s *Session) Reset() {
	s.store.Reset()
	s.alarm.Reset()
}

// Tick evaluates one frame and advances the alarm.
func (s *Session) Tick(landmarks pose.LandmarkSet, settings Settings, now time.Time) TickResult {
	settings = settings.Normalized()
	baseline := s.store.Baseline()

	eval := posture.Evaluate(landmarks, baseline, settings.Sensitivity)
	status := s.alarm.Update(eval.State.Bad(), now, settings.AlarmDelay)

	return TickResult{
		SessionID:  s.ID,
		Time:       now,
		Detected:   landmarks.Detected(),
		Landmarks:  landmarks,
		Evaluation: eval,
		Alarm:      status,
		Baseline:   baseline,
		Settings:   settings,
		Color:      colorFor(eval.State),
		Label:      eval.State.Label(),
	}
}

func colorFor(s posture.State) Color {
	if s == posture.Good {
		return ColorGreen
	}
	return ColorRed
}
