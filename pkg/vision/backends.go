package vision

import (
	"fmt"

	"github.com/teslashibe/posture-police/pkg/pose"
	"github.com/teslashibe/posture-police/pkg/pose/movenet"
	"github.com/teslashibe/posture-police/pkg/pose/openpose"
)

// NewExtractor loads the pose backend named in cfg.Backend.
func NewExtractor(cfg pose.Config) (Extractor, error) {
	switch cfg.Backend {
	case "", openpose.Name:
		e, err := openpose.New(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	case movenet.Name:
		e, err := movenet.New(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("vision: unknown pose backend %q", cfg.Backend)
	}
}
