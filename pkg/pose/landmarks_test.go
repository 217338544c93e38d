package pose

import (
	"errors"
	"testing"
)

func TestLandmarkSetZeroValueIsAbsent(t *testing.T) {
	var s LandmarkSet
	if s.Detected() {
		t.Error("zero LandmarkSet should not be detected")
	}
	if s.Count() != 0 {
		t.Errorf("Count() = %d, want 0", s.Count())
	}
	if _, ok := s.Get(LeftEar); ok {
		t.Error("Get on zero set returned ok")
	}
}

func TestLandmarkSet(t *testing.T) {
	s := NewLandmarkSet(map[Point]Landmark{
		LeftEar:      {X: 0.6, Y: 0.4, Visibility: 0.9},
		LeftShoulder: {X: 0.7, Y: 0.55, Visibility: 0.8},
	})

	if !s.Detected() || s.Count() != 2 {
		t.Fatalf("Detected=%v Count=%d, want true/2", s.Detected(), s.Count())
	}
	if got, ok := s.Get(LeftEar); !ok || got.Y != 0.4 {
		t.Errorf("Get(LeftEar) = %+v, %v", got, ok)
	}
	if !s.Has(LeftEar, LeftShoulder) {
		t.Error("Has(LeftEar, LeftShoulder) = false")
	}
	if s.Has(LeftEar, RightEar) {
		t.Error("Has(LeftEar, RightEar) = true")
	}

	s.Delete(LeftEar)
	if s.Has(LeftEar) || s.Count() != 1 {
		t.Error("Delete did not remove the point")
	}
	if len(s.Points()) != 1 {
		t.Errorf("Points() = %v, want one entry", s.Points())
	}

	s.Set(Point(-1), Landmark{})
	s.Set(NumPoints, Landmark{})
	if s.Count() != 1 {
		t.Error("out of range Set changed the set")
	}
}

func TestPointString(t *testing.T) {
	tests := []struct {
		p    Point
		want string
	}{
		{Nose, "nose"},
		{LeftEar, "left_ear"},
		{RightShoulder, "right_shoulder"},
		{Point(42), "point(42)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("Point(%d).String() = %q, want %q", int(tt.p), got, tt.want)
		}
	}
}

func TestFromKeypoints(t *testing.T) {
	mapping := map[int]Point{0: Nose, 1: LeftEar, 2: RightEar, 9: LeftShoulder}
	keypoints := []Keypoint{
		{X: 0.5, Y: 0.2, Score: 0.9},
		{X: 0.6, Y: 0.3, Score: 0.4},  // below threshold
		{X: 1.2, Y: -0.1, Score: 0.7}, // clamped
	}

	s := FromKeypoints(mapping, keypoints, 0.5)

	if !s.Has(Nose, RightEar) {
		t.Fatalf("missing expected points: %v", s.Points())
	}
	if s.Has(LeftEar) {
		t.Error("low-confidence keypoint kept")
	}
	if s.Has(LeftShoulder) {
		t.Error("out of range index mapped")
	}
	if got, _ := s.Get(RightEar); got.X != 1 || got.Y != 0 || got.Visibility != 0.7 {
		t.Errorf("RightEar = %+v, want clamped to (1, 0) with visibility 0.7", got)
	}
}

func TestExtractorError(t *testing.T) {
	cause := errors.New("forward failed")
	err := WrapError("openpose", cause)

	var ee *ExtractorError
	if !errors.As(err, &ee) {
		t.Fatalf("errors.As(%v) = false", err)
	}
	if ee.Backend != "openpose" {
		t.Errorf("Backend = %q, want openpose", ee.Backend)
	}
	if again := WrapError("movenet", err); again != err {
		t.Errorf("rewrapping = %v, want the original error", again)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error does not unwrap to its cause")
	}
	if WrapError("openpose", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}
