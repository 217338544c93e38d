package openpose

import (
	"errors"
	"image"
	"path/filepath"
	"testing"

	"github.com/teslashibe/posture-police/pkg/pose"
)

func TestPeakToKeypoint(t *testing.T) {
	kp := peakToKeypoint(image.Pt(0, 45), 0.8, 46, 46)
	if kp.X != 0.5/46 {
		t.Errorf("X = %v, want %v", kp.X, 0.5/46)
	}
	if kp.Y != 45.5/46 {
		t.Errorf("Y = %v, want %v", kp.Y, 45.5/46)
	}
	if kp.Score != 0.8 {
		t.Errorf("Score = %v, want 0.8", kp.Score)
	}
}

func TestKeypointsCoverTrackedPoints(t *testing.T) {
	seen := map[pose.Point]bool{}
	for idx, p := range Keypoints {
		if idx < 0 || idx >= cocoParts {
			t.Errorf("channel %d out of range", idx)
		}
		seen[p] = true
	}
	for p := pose.Point(0); p < pose.NumPoints; p++ {
		if !seen[p] {
			t.Errorf("%v has no COCO channel", p)
		}
	}
}

func TestNewMissingModel(t *testing.T) {
	cfg := pose.DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.caffemodel")

	if _, err := New(cfg); !errors.Is(err, pose.ErrModelNotFound) {
		t.Errorf("New() error = %v, want ErrModelNotFound", err)
	}
}
