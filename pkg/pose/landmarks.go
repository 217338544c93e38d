// Package pose defines the body landmarks the posture core consumes and the
// keypoint mapping shared by the pose-estimation backends.
package pose

import "fmt"

// Point names one of the body landmarks tracked per frame.
type Point int

// Tracked points. The order is stable and used as an array index.
const (
	Nose Point = iota
	LeftEye
	RightEye
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	NumPoints
)

var pointNames = [NumPoints]string{
	Nose:          "nose",
	LeftEye:       "left_eye",
	RightEye:      "right_eye",
	LeftEar:       "left_ear",
	RightEar:      "right_ear",
	LeftShoulder:  "left_shoulder",
	RightShoulder: "right_shoulder",
}

// String returns the snake_case point name.
func (p Point) String() string {
	if p < 0 || p >= NumPoints {
		return fmt.Sprintf("point(%d)", int(p))
	}
	return pointNames[p]
}

// Landmark is a normalized image position. X and Y are in [0,1] with Y
// growing downward.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility"`
}

// LandmarkSet holds the landmarks found in one frame. The zero value is the
// absent set: no body was detected.
type LandmarkSet struct {
	points  [NumPoints]Landmark
	present [NumPoints]bool
}

// NewLandmarkSet builds a set from a point map. Points not in the map are
// missing.
func NewLandmarkSet(points map[Point]Landmark) LandmarkSet {
	var s LandmarkSet
	for p, lm := range points {
		s.Set(p, lm)
	}
	return s
}

// Set records a landmark for p. Out-of-range points are ignored.
func (s *LandmarkSet) Set(p Point, lm Landmark) {
	if p < 0 || p >= NumPoints {
		return
	}
	s.points[p] = lm
	s.present[p] = true
}

// Delete marks p as missing.
func (s *LandmarkSet) Delete(p Point) {
	if p < 0 || p >= NumPoints {
		return
	}
	s.points[p] = Landmark{}
	s.present[p] = false
}

// Get returns the landmark for p and whether it was detected.
func (s LandmarkSet) Get(p Point) (Landmark, bool) {
	if p < 0 || p >= NumPoints || !s.present[p] {
		return Landmark{}, false
	}
	return s.points[p], true
}

// Has reports whether every listed point is present.
func (s LandmarkSet) Has(points ...Point) bool {
	for _, p := range points {
		if _, ok := s.Get(p); !ok {
			return false
		}
	}
	return true
}

// Detected reports whether any point is present.
func (s LandmarkSet) Detected() bool {
	for _, ok := range s.present {
		if ok {
			return true
		}
	}
	return false
}

// Count returns the number of present points.
func (s LandmarkSet) Count() int {
	n := 0
	for _, ok := range s.present {
		if ok {
			n++
		}
	}
	return n
}

// Points returns the present landmarks keyed by point.
func (s LandmarkSet) Points() map[Point]Landmark {
	out := make(map[Point]Landmark, NumPoints)
	for p := Point(0); p < NumPoints; p++ {
		if s.present[p] {
			out[p] = s.points[p]
		}
	}
	return out
}
