package monitor

import (
	"time"

	"github.com/teslashibe/posture-police/pkg/posture"
)

// Alarm delay bounds.
const (
	MinAlarmDelay     = 1 * time.Second
	MaxAlarmDelay     = 60 * time.Second
	DefaultAlarmDelay = 30 * time.Second
)

// Settings is the user configuration surface. It is read on every tick.
type Settings struct {
	Sensitivity   posture.Sensitivity `json:"sensitivity"`
	AlarmDelay    time.Duration       `json:"alarm_delay"`
	CameraEnabled bool                `json:"camera_enabled"`
}

// DefaultSettings returns sensitivity 8, a 30 second delay, camera off.
func DefaultSettings() Settings {
	return Settings{
		Sensitivity: posture.DefaultSensitivity,
		AlarmDelay:  DefaultAlarmDelay,
	}
}

// Normalized returns s with every value clamped to its range.
func (s Settings) Normalized() Settings {
	s.Sensitivity = posture.ClampSensitivity(int(s.Sensitivity))
	s.AlarmDelay = ClampAlarmDelay(s.AlarmDelay)
	return s
}

// ClampAlarmDelay clamps d to [MinAlarmDelay, MaxAlarmDelay].
func ClampAlarmDelay(d time.Duration) time.Duration {
	if d < MinAlarmDelay {
		return MinAlarmDelay
	}
	if d > MaxAlarmDelay {
		return MaxAlarmDelay
	}
	return d
}
