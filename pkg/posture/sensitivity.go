package posture

// Sensitivity is the user strictness setting; higher is stricter.
type Sensitivity int

// Sensitivity bounds.
const (
	MinSensitivity     Sensitivity = 1
	MaxSensitivity     Sensitivity = 10
	DefaultSensitivity Sensitivity = 8
)

// Threshold curve. Both are linear in sensitivity.
const (
	hunchRatioBase  = 0.805
	hunchRatioSlope = 0.016
	sinkOffsetBase  = 0.09
	sinkOffsetSlope = 0.008
)

// ClampSensitivity clamps s to [MinSensitivity, MaxSensitivity].
func ClampSensitivity(s int) Sensitivity {
	if s < int(MinSensitivity) {
		return MinSensitivity
	}
	if s > int(MaxSensitivity) {
		return MaxSensitivity
	}
	return Sensitivity(s)
}

// Thresholds are the limits derived from a sensitivity.
type Thresholds struct {
	// HunchRatio is the fraction of the baseline neck length below which
	// the user is hunching.
	HunchRatio float64 `json:"hunch_ratio"`
	// SinkOffset is the normalized downward eye drift above which the user
	// is sinking.
	SinkOffset float64 `json:"sink_offset"`
}

// ThresholdsFor derives thresholds from s after clamping.
func ThresholdsFor(s Sensitivity) Thresholds {
	s = ClampSensitivity(int(s))
	return Thresholds{
		HunchRatio: HunchRatio(s),
		SinkOffset: SinkOffset(s),
	}
}

// HunchRatio is 0.821 at sensitivity 1 and 0.965 at 10.
func HunchRatio(s Sensitivity) float64 {
	return hunchRatioBase + hunchRatioSlope*float64(ClampSensitivity(int(s)))
}

// SinkOffset is 0.082 at sensitivity 1 and 0.01 at 10.
func SinkOffset(s Sensitivity) float64 {
	return sinkOffsetBase - sinkOffsetSlope*float64(ClampSensitivity(int(s)))
}
