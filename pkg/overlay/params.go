package overlay

import (
	"errors"
	"fmt"
	"math"
)

// MediaPipe face-mesh indices used as the eye reference points.
const (
	DefaultLeftEyeIndex  = 33
	DefaultRightEyeIndex = 263
)

// Params holds the calibration constants of the estimator.
type Params struct {
	LeftEyeIndex  int
	RightEyeIndex int

	// Valid band for the normalized inter-eye distance.
	MinEyeDist float64
	MaxEyeDist float64

	// Eye distance at which the overlay is drawn at Tuning scale.
	ReferenceEyeDist float64
	Tuning           float64

	// Renderer units spanned by the full normalized frame.
	SceneWidth  float64
	SceneHeight float64

	// Shift from eye height to bridge height, in renderer units.
	VerticalOffset float64
	Depth          float64

	MinScale float64
	MaxScale float64
}

func DefaultParams() Params {
	return Params{
		LeftEyeIndex:     DefaultLeftEyeIndex,
		RightEyeIndex:    DefaultRightEyeIndex,
		MinEyeDist:       0.05,
		MaxEyeDist:       0.35,
		ReferenceEyeDist: 0.15,
		Tuning:           1.0,
		SceneWidth:       4.0,
		SceneHeight:      3.0,
		VerticalOffset:   -0.05,
		Depth:            0,
		MinScale:         0.25,
		MaxScale:         3.0,
	}
}

var ErrInvalidParams = errors.New("invalid overlay params")

func (p Params) Validate() error {
	if p.LeftEyeIndex < 0 || p.RightEyeIndex < 0 || p.LeftEyeIndex == p.RightEyeIndex {
		return fmt.Errorf("%w: eye indices %d/%d", ErrInvalidParams, p.LeftEyeIndex, p.RightEyeIndex)
	}
	if !positive(p.MinEyeDist) || !positive(p.MaxEyeDist) || p.MinEyeDist > p.MaxEyeDist {
		return fmt.Errorf("%w: eye distance band [%v, %v]", ErrInvalidParams, p.MinEyeDist, p.MaxEyeDist)
	}
	if !positive(p.ReferenceEyeDist) || !positive(p.Tuning) {
		return fmt.Errorf("%w: reference distance %v, tuning %v", ErrInvalidParams, p.ReferenceEyeDist, p.Tuning)
	}
	if !positive(p.SceneWidth) || !positive(p.SceneHeight) {
		return fmt.Errorf("%w: scene %vx%v", ErrInvalidParams, p.SceneWidth, p.SceneHeight)
	}
	if !positive(p.MinScale) || !positive(p.MaxScale) || p.MinScale > p.MaxScale {
		return fmt.Errorf("%w: scale band [%v, %v]", ErrInvalidParams, p.MinScale, p.MaxScale)
	}
	if math.IsNaN(p.VerticalOffset) || math.IsInf(p.VerticalOffset, 0) || math.IsNaN(p.Depth) || math.IsInf(p.Depth, 0) {
		return fmt.Errorf("%w: offsets must be finite", ErrInvalidParams)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
