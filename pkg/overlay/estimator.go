// Package overlay turns face landmarks into the position, scale and rotation
// of a glasses model drawn over a mirrored webcam feed.
package overlay

import (
	"math"

	"TryOnService/internal/entity"
)

type Estimator struct {
	params Params
}

func NewEstimator(params Params) (*Estimator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{params: params}, nil
}

func (e *Estimator) Params() Params {
	return e.params
}

// Anchors extracts the eye reference points. It reports false when the frame
// carries no usable face, which callers treat as a missed detection.
func (e *Estimator) Anchors(frame *entity.LandmarkFrame) (entity.EyeAnchorPair, bool) {
	if frame == nil {
		return entity.EyeAnchorPair{}, false
	}
	n := len(frame.Landmarks)
	if e.params.LeftEyeIndex >= n || e.params.RightEyeIndex >= n {
		return entity.EyeAnchorPair{}, false
	}
	pair := entity.EyeAnchorPair{
		Left:  frame.Landmarks[e.params.LeftEyeIndex],
		Right: frame.Landmarks[e.params.RightEyeIndex],
	}
	if !finitePoint(pair.Left) || !finitePoint(pair.Right) {
		return entity.EyeAnchorPair{}, false
	}
	return pair, true
}

// ClampEyeDistance limits a raw inter-eye distance to the valid band.
func (e *Estimator) ClampEyeDistance(raw float64) float64 {
	return clamp(raw, e.params.MinEyeDist, e.params.MaxEyeDist)
}

// Estimate computes the overlay transform for one eye pair. baseScale is the
// product's default sizing and multiplier the user's size control; values that
// are not positive and finite count as 1.
func (e *Estimator) Estimate(pair entity.EyeAnchorPair, baseScale, multiplier float64) entity.OverlayTransform {
	p := e.params

	cx := (pair.Left.X + pair.Right.X) / 2
	cy := (pair.Left.Y + pair.Right.Y) / 2

	dx := pair.Right.X - pair.Left.X
	dy := pair.Right.Y - pair.Left.Y
	dist := e.ClampEyeDistance(math.Hypot(dx, dy))
	angle := math.Atan2(dy, dx)

	x := (cx - 0.5) * p.SceneWidth
	y := (0.5-cy)*p.SceneHeight + p.VerticalOffset

	scale := (dist / p.ReferenceEyeDist) * p.Tuning * orOne(baseScale)
	scale *= orOne(multiplier)
	scale = clamp(scale, p.MinScale, p.MaxScale)

	rotation := -angle
	if rotation == 0 {
		// normalize -0
		rotation = 0
	}

	return entity.OverlayTransform{
		Position:    entity.Vec3{X: x, Y: y, Z: p.Depth},
		Scale:       scale,
		RotationZ:   rotation,
		EyeDistance: dist,
	}
}

func orOne(v float64) float64 {
	if !positive(v) {
		return 1
	}
	return v
}

func finitePoint(pt entity.Point) bool {
	return !math.IsNaN(pt.X) && !math.IsNaN(pt.Y) && !math.IsInf(pt.X, 0) && !math.IsInf(pt.Y, 0)
}
