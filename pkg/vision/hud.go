package vision

import (
	"fmt"
	"image"
	"math"

	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/pose"
	"github.com/teslashibe/posture-police/pkg/posture"
)

// hud is the text and geometry drawn over one frame, in pixels.
type hud struct {
	skeleton  bool
	ear       image.Point
	shoulder  image.Point
	lines     []string // data box rows
	status    string
	banner    string // centered warning, empty when none
	prompt    string // top-left prompt when no data box is drawn
	border    bool
	ringing   bool
	badge     image.Rectangle // top-right "ALARM" badge while ringing
	countdown string
}

// buildHUD lays out the overlay for a w x h frame.
func buildHUD(r monitor.TickResult, w, h int) hud {
	var out hud

	if ear, ok := midpoint(r.Landmarks, pose.LeftEar, pose.RightEar); ok {
		if shoulder, ok := midpoint(r.Landmarks, pose.LeftShoulder, pose.RightShoulder); ok {
			out.skeleton = true
			out.ear = toPixel(ear, w, h)
			out.shoulder = toPixel(shoulder, w, h)
		}
	}

	switch {
	case !r.Baseline.Calibrated:
		out.prompt = posture.Unknown.Label()
		return out
	case r.Evaluation.State == posture.Unknown:
		out.prompt = "No body detected"
		return out
	}

	m := r.Evaluation.Measurements
	out.lines = []string{
		fmt.Sprintf("Neck: %d (Min: %d)", px(m.NeckLength, h), px(m.MinNeckLength, h)),
		fmt.Sprintf("Eyes: %d (Max: %d)", px(m.EyeLevel, h), px(m.MaxEyeLevel, h)),
	}
	out.status = "Status: " + r.Label

	if r.Evaluation.State.Bad() {
		out.border = true
		out.banner = "FIX POSTURE!"
	}
	if remaining := r.Alarm.Remaining(); remaining > 0 {
		out.countdown = fmt.Sprintf("Alarm in %ds", int(math.Ceil(remaining.Seconds())))
	}
	if r.Alarm.Ringing {
		out.ringing = true
		out.badge = image.Rect(w-150, 10, w-10, 50)
	}
	return out
}

// midpoint averages the present points of a left/right pair.
func midpoint(s pose.LandmarkSet, a, b pose.Point) (pose.Landmark, bool) {
	la, okA := s.Get(a)
	lb, okB := s.Get(b)
	switch {
	case okA && okB:
		return pose.Landmark{X: (la.X + lb.X) / 2, Y: (la.Y + lb.Y) / 2}, true
	case okA:
		return la, true
	case okB:
		return lb, true
	}
	return pose.Landmark{}, false
}

func toPixel(lm pose.Landmark, w, h int) image.Point {
	return image.Pt(int(lm.X*float64(w)), int(lm.Y*float64(h)))
}

// px converts a normalized length to pixels.
func px(v float64, h int) int {
	return int(v * float64(h))
}
