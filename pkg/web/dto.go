package web

import (
	"time"

	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/posture"
)

type errorResponse struct {
	Error string `json:"error"`
}

// Settings is the wire form of monitor.Settings. Delays are in seconds.
type Settings struct {
	Sensitivity       int     `json:"sensitivity"`
	AlarmDelaySeconds float64 `json:"alarm_delay_seconds"`
	CameraEnabled     bool    `json:"camera_enabled"`
}

// NewSettings converts monitor settings.
func NewSettings(s monitor.Settings) Settings {
	return Settings{
		Sensitivity:       int(s.Sensitivity),
		AlarmDelaySeconds: s.AlarmDelay.Seconds(),
		CameraEnabled:     s.CameraEnabled,
	}
}

// SettingsUpdate is a partial settings change. Omitted fields are kept.
type SettingsUpdate struct {
	Sensitivity       *int     `json:"sensitivity,omitempty"`
	AlarmDelaySeconds *float64 `json:"alarm_delay_seconds,omitempty"`
}

// Validate rejects values outside the slider ranges.
func (u SettingsUpdate) Validate() []string {
	var errs []string
	if u.Sensitivity != nil && (*u.Sensitivity < int(posture.MinSensitivity) || *u.Sensitivity > int(posture.MaxSensitivity)) {
		errs = append(errs, "sensitivity must be between 1 and 10")
	}
	if u.AlarmDelaySeconds != nil {
		d := secondsToDuration(*u.AlarmDelaySeconds)
		if d < monitor.MinAlarmDelay || d > monitor.MaxAlarmDelay {
			errs = append(errs, "alarm_delay_seconds must be between 1 and 60")
		}
	}
	return errs
}

func (u SettingsUpdate) apply(s *monitor.Settings) {
	if u.Sensitivity != nil {
		s.Sensitivity = posture.Sensitivity(*u.Sensitivity)
	}
	if u.AlarmDelaySeconds != nil {
		s.AlarmDelay = secondsToDuration(*u.AlarmDelaySeconds)
	}
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}

// Alarm is the wire form of the debouncer status.
type Alarm struct {
	Phase            string  `json:"phase"`
	Ringing          bool    `json:"ringing"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// Baseline is the wire form of a calibration baseline.
type Baseline struct {
	Calibrated   bool       `json:"calibrated"`
	NeckLength   float64    `json:"neck_length,omitempty"`
	EyeLevel     float64    `json:"eye_level,omitempty"`
	CalibratedAt *time.Time `json:"calibrated_at,omitempty"`
}

// NewBaseline converts a baseline.
func NewBaseline(b posture.Baseline) Baseline {
	out := Baseline{Calibrated: b.Calibrated}
	if b.Calibrated {
		at := b.CalibratedAt
		out.NeckLength = b.NeckLength
		out.EyeLevel = b.EyeLevel
		out.CalibratedAt = &at
	}
	return out
}

// Status is one tick as sent on /ws/status and /api/status.
type Status struct {
	SessionID    string               `json:"session_id,omitempty"`
	Time         time.Time            `json:"time"`
	Detected     bool                 `json:"detected"`
	State        string               `json:"state"`
	Label        string               `json:"label"`
	Color        string               `json:"color"`
	Measurements posture.Measurements `json:"measurements"`
	Alarm        Alarm                `json:"alarm"`
	Baseline     Baseline             `json:"baseline"`
	Settings     Settings             `json:"settings"`
}

// NewStatus converts a tick result.
func NewStatus(r monitor.TickResult) Status {
	return Status{
		SessionID:    r.SessionID,
		Time:         r.Time,
		Detected:     r.Detected,
		State:        r.Evaluation.State.String(),
		Label:        r.Label,
		Color:        string(r.Color),
		Measurements: r.Evaluation.Measurements,
		Alarm: Alarm{
			Phase:            r.Alarm.Phase.String(),
			Ringing:          r.Alarm.Ringing,
			ElapsedSeconds:   r.Alarm.Elapsed.Seconds(),
			RemainingSeconds: r.Alarm.Remaining().Seconds(),
		},
		Baseline: NewBaseline(r.Baseline),
		Settings: NewSettings(r.Settings),
	}
}

type cameraRequest struct {
	Enabled *bool `json:"enabled"`
}
