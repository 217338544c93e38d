// Package movenet extracts body landmarks with the MoveNet single-pose model
// running on ONNX Runtime.
package movenet

import (
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/posture-police/pkg/pose"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// Name is the backend name.
const Name = "movenet"

const (
	inputName  = "input"
	outputName = "output_0"
	numJoints  = 17
)

// Keypoints maps MoveNet joint indices onto tracked points.
var Keypoints = map[int]pose.Point{
	0: pose.Nose,
	1: pose.LeftEye,
	2: pose.RightEye,
	3: pose.LeftEar,
	4: pose.RightEar,
	5: pose.LeftShoulder,
	6: pose.RightShoulder,
}

var envOnce sync.Once
var envErr error

// initEnvironment initializes the process-wide ONNX Runtime environment.
func initEnvironment(library string) error {
	envOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Extractor runs MoveNet on each frame.
type Extractor struct {
	cfg     pose.Config
	session *ort.AdvancedSession
	input   *ort.Tensor[int32]
	output  *ort.Tensor[float32]
	mu      sync.Mutex
}

// New creates the ONNX Runtime session for cfg.ModelPath.
func New(cfg pose.Config) (*Extractor, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", pose.ErrModelNotFound, cfg.ModelPath)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		cfg.InputWidth, cfg.InputHeight = 192, 192
	}
	if err := initEnvironment(cfg.ORTLibrary); err != nil {
		return nil, fmt.Errorf("movenet: init onnxruntime: %w", err)
	}

	inShape := ort.NewShape(1, int64(cfg.InputHeight), int64(cfg.InputWidth), 3)
	input, err := ort.NewEmptyTensor[int32](inShape)
	if err != nil {
		return nil, fmt.Errorf("movenet: input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, numJoints, 3))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("movenet: output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{inputName}, []string{outputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("movenet: create session: %w", err)
	}

	return &Extractor{cfg: cfg, session: session, input: input, output: output}, nil
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

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(frame, &resized, image.Pt(e.cfg.InputWidth, e.cfg.InputHeight), 0, 0, gocv.InterpolationLinear)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB)

	pixels := rgb.ToBytes()
	data := e.input.GetData()
	if len(pixels) != len(data) {
		return pose.LandmarkSet{}, pose.WrapError(Name, fmt.Errorf("input size %d, want %d", len(pixels), len(data)))
	}
	for i, b := range pixels {
		data[i] = int32(b)
	}

	if err := e.session.Run(); err != nil {
		return pose.LandmarkSet{}, pose.WrapError(Name, err)
	}

	return pose.FromKeypoints(Keypoints, DecodeOutput(e.output.GetData()), e.cfg.MinConfidence), nil
}

// DecodeOutput converts the [1,1,17,3] (y, x, score) output to keypoints.
func DecodeOutput(out []float32) []pose.Keypoint {
	n := len(out) / 3
	if n > numJoints {
		n = numJoints
	}
	kps := make([]pose.Keypoint, n)
	for i := 0; i < n; i++ {
		kps[i] = pose.Keypoint{
			Y:     float64(out[i*3]),
			X:     float64(out[i*3+1]),
			Score: float64(out[i*3+2]),
		}
	}
	return kps
}

// Close releases the session and tensors.
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for _, destroy := range []func() error{e.session.Destroy, e.input.Destroy, e.output.Destroy} {
		if err := destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
