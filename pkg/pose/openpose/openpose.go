// Package openpose extracts body landmarks with the COCO OpenPose network
// through OpenCV's DNN module.
package openpose

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/posture-police/pkg/pose"
	"gocv.io/x/gocv"
)

// Name is the backend name.
const Name = "openpose"

// COCO keypoint layout of the OpenPose body model.
const (
	cocoNose      = 0
	cocoRShoulder = 2
	cocoLShoulder = 5
	cocoREye      = 14
	cocoLEye      = 15
	cocoREar      = 16
	cocoLEar      = 17
	cocoParts     = 18
)

// Keypoints maps COCO output channels onto tracked points.
var Keypoints = map[int]pose.Point{
	cocoNose:      pose.Nose,
	cocoREye:      pose.RightEye,
	cocoLEye:      pose.LeftEye,
	cocoREar:      pose.RightEar,
	cocoLEar:      pose.LeftEar,
	cocoRShoulder: pose.RightShoulder,
	cocoLShoulder: pose.LeftShoulder,
}

// Extractor runs OpenPose on each frame.
type Extractor struct {
	net       gocv.Net
	cfg       pose.Config
	inputSize image.Point
	mu        sync.Mutex
}

// New loads the OpenPose network described by cfg.
func New(cfg pose.Config) (*Extractor, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", pose.ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("openpose: failed to load model from %s", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("openpose: set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("openpose: set target: %w", err)
	}

	return &Extractor{
		net:       net,
		cfg:       cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Name returns the backend name.
func (e *Extractor) Name() string { return Name }

// Extract finds the landmarks in frame.
func (e *Extractor) Extract(frame gocv.Mat) (pose.LandmarkSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if frame.Empty() {
		return pose.LandmarkSet{}, pose.WrapError(Name, fmt.Errorf("empty frame"))
	}

	blob := gocv.BlobFromImage(frame, 1.0/255.0, e.inputSize, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	prob := e.net.Forward("")
	defer prob.Close()

	// Output shape: [1, parts(+bg+PAFs), H, W]
	dims := prob.Size()
	if len(dims) != 4 || dims[1] < cocoParts {
		return pose.LandmarkSet{}, pose.WrapError(Name, fmt.Errorf("unexpected output shape %v", dims))
	}
	h, w := dims[2], dims[3]

	keypoints := make([]pose.Keypoint, cocoParts)
	for i := 0; i < cocoParts; i++ {
		if _, ok := Keypoints[i]; !ok {
			continue
		}
		heatmap, err := prob.FromPtr(h, w, gocv.MatTypeCV32F, 0, i)
		if err != nil {
			return pose.LandmarkSet{}, pose.WrapError(Name, fmt.Errorf("heatmap %d: %w", i, err))
		}
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(heatmap)
		heatmap.Close()

		keypoints[i] = peakToKeypoint(maxLoc, float64(maxVal), w, h)
	}

	return pose.FromKeypoints(Keypoints, keypoints, e.cfg.MinConfidence), nil
}

// peakToKeypoint converts a heatmap cell to a normalized keypoint at the
// cell center.
func peakToKeypoint(loc image.Point, score float64, w, h int) pose.Keypoint {
	return pose.Keypoint{
		X:     (float64(loc.X) + 0.5) / float64(w),
		Y:     (float64(loc.Y) + 0.5) / float64(h),
		Score: score,
	}
}

// Close releases the network.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
