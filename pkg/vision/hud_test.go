package vision

import (
	"image"
	"testing"
	"time"

	"github.com/teslashibe/posture-police/pkg/alarm"
	"github.com/teslashibe/posture-police/pkg/monitor"
	"github.com/teslashibe/posture-police/pkg/pose"
	"github.com/teslashibe/posture-police/pkg/posture"
)

func upright() pose.LandmarkSet {
	return pose.NewLandmarkSet(map[pose.Point]pose.Landmark{
		pose.LeftEar:       {X: 0.4, Y: 0.3},
		pose.RightEar:      {X: 0.6, Y: 0.3},
		pose.LeftShoulder:  {X: 0.3, Y: 0.5},
		pose.RightShoulder: {X: 0.7, Y: 0.5},
	})
}

func TestBuildHUDUncalibrated(t *testing.T) {
	h := buildHUD(monitor.TickResult{Landmarks: upright()}, 640, 480)

	if h.prompt != "Sit straight & calibrate" {
		t.Errorf("prompt = %q", h.prompt)
	}
	if !h.skeleton {
		t.Error("skeleton should be drawn when ears and shoulders are present")
	}
	if h.ear != image.Pt(320, 144) || h.shoulder != image.Pt(320, 240) {
		t.Errorf("ear = %v, shoulder = %v", h.ear, h.shoulder)
	}
	if len(h.lines) != 0 || h.border {
		t.Errorf("uncalibrated HUD should only prompt: %+v", h)
	}
}

func TestBuildHUDNoBody(t *testing.T) {
	r := monitor.TickResult{
		Baseline:   posture.Baseline{Calibrated: true},
		Evaluation: posture.Evaluation{State: posture.Unknown},
	}
	h := buildHUD(r, 640, 480)

	if h.prompt != "No body detected" {
		t.Errorf("prompt = %q", h.prompt)
	}
	if h.skeleton {
		t.Error("skeleton drawn without landmarks")
	}
}

func TestBuildHUDSlouching(t *testing.T) {
	r := monitor.TickResult{
		Landmarks: upright(),
		Baseline:  posture.Baseline{Calibrated: true},
		Evaluation: posture.Evaluation{
			State: posture.Hunching,
			Measurements: posture.Measurements{
				NeckLength:    0.2,
				MinNeckLength: 0.25,
				EyeLevel:      0.3,
				MaxEyeLevel:   0.35,
			},
		},
		Alarm: alarm.Status{
			Phase:   alarm.Accumulating,
			Delay:   30 * time.Second,
			Elapsed: 12500 * time.Millisecond,
		},
		Label: "HUNCHING!",
	}
	h := buildHUD(r, 640, 480)

	want := []string{"Neck: 96 (Min: 120)", "Eyes: 144 (Max: 168)"}
	if len(h.lines) != len(want) {
		t.Fatalf("lines = %v, want %v", h.lines, want)
	}
	for i := range want {
		if h.lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, h.lines[i], want[i])
		}
	}
	if h.status != "Status: HUNCHING!" {
		t.Errorf("status = %q", h.status)
	}
	if !h.border || h.banner != "FIX POSTURE!" {
		t.Errorf("bad posture should draw border and banner: %+v", h)
	}
	if h.countdown != "Alarm in 18s" {
		t.Errorf("countdown = %q, want Alarm in 18s", h.countdown)
	}
	if h.ringing || !h.badge.Empty() {
		t.Error("ringing before the delay elapsed")
	}
}

func TestBuildHUDRinging(t *testing.T) {
	r := monitor.TickResult{
		Landmarks:  upright(),
		Baseline:   posture.Baseline{Calibrated: true},
		Evaluation: posture.Evaluation{State: posture.Sinking},
		Alarm: alarm.Status{
			Phase:   alarm.Ringing,
			Ringing: true,
			Delay:   30 * time.Second,
			Elapsed: 31 * time.Second,
		},
		Label: "SINKING!",
	}
	h := buildHUD(r, 640, 480)

	if !h.ringing {
		t.Fatal("ringing not set")
	}
	if want := image.Rect(490, 10, 630, 50); h.badge != want {
		t.Errorf("badge = %v, want %v", h.badge, want)
	}
	if !h.badge.In(image.Rect(0, 0, 640, 480)) {
		t.Error("badge outside the frame")
	}
	if h.countdown != "" {
		t.Errorf("countdown = %q while ringing, want none", h.countdown)
	}
}

func TestBuildHUDGood(t *testing.T) {
	r := monitor.TickResult{
		Landmarks:  upright(),
		Baseline:   posture.Baseline{Calibrated: true},
		Evaluation: posture.Evaluation{State: posture.Good},
		Label:      "GOOD",
	}
	h := buildHUD(r, 640, 480)

	if h.border || h.banner != "" || h.countdown != "" {
		t.Errorf("good posture should not warn: %+v", h)
	}
	if h.status != "Status: GOOD" {
		t.Errorf("status = %q", h.status)
	}
}

func TestMidpoint(t *testing.T) {
	set := pose.NewLandmarkSet(map[pose.Point]pose.Landmark{
		pose.LeftEar: {X: 0.2, Y: 0.4},
	})

	got, ok := midpoint(set, pose.LeftEar, pose.RightEar)
	if !ok || got.X != 0.2 || got.Y != 0.4 {
		t.Errorf("single side midpoint = %+v, %v", got, ok)
	}
	if _, ok := midpoint(set, pose.LeftShoulder, pose.RightShoulder); ok {
		t.Error("midpoint of missing pair should fail")
	}
}
