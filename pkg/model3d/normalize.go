package model3d

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

const (
	DefaultTargetWidth     = 1.0
	DefaultOpticalFraction = 0.4
)

var ErrDegenerateModel = errors.New("model has no usable extent")

type Options struct {
	// Horizontal extent of every normalized model.
	TargetWidth float64
	// Fraction of the model height between its geometric center and the lens
	// centerline; the model is lowered by this much so the lenses sit at y=0.
	OpticalFraction float64
}

func DefaultOptions() Options {
	return Options{TargetWidth: DefaultTargetWidth, OpticalFraction: DefaultOpticalFraction}
}

func (o Options) Validate() error {
	if !(o.TargetWidth > 0) || math.IsInf(o.TargetWidth, 0) {
		return fmt.Errorf("target width must be positive, got %v", o.TargetWidth)
	}
	if o.OpticalFraction < 0 || o.OpticalFraction >= 0.5 || math.IsNaN(o.OpticalFraction) {
		return fmt.Errorf("optical fraction must be in [0, 0.5), got %v", o.OpticalFraction)
	}
	return nil
}

// Calibration maps source-space points into the normalized model space:
// p' = (p + Offset) * Scale.
type Calibration struct {
	Offset        r3.Vector
	Scale         float64
	SourceBox     Box3
	NormalizedBox Box3
}

func (c Calibration) Apply(p r3.Vector) r3.Vector {
	return p.Add(c.Offset).Mul(c.Scale)
}

// Normalize computes the calibration for a model whose source bounds are box.
// The box is only read.
func Normalize(box Box3, opts Options) (Calibration, error) {
	if err := opts.Validate(); err != nil {
		return Calibration{}, err
	}
	if box.Empty() {
		return Calibration{}, ErrDegenerateModel
	}
	size := box.Size()
	if !(size.X > 0) || math.IsInf(size.X, 0) || math.IsNaN(size.Y) || math.IsNaN(size.Z) {
		return Calibration{}, fmt.Errorf("%w: size %v", ErrDegenerateModel, size)
	}

	center := box.Center()
	offset := r3.Vector{
		X: -center.X,
		Y: -center.Y - opts.OpticalFraction*size.Y,
		Z: -center.Z,
	}
	scale := opts.TargetWidth / size.X

	c := Calibration{
		Offset:    offset,
		Scale:     scale,
		SourceBox: box,
	}
	c.NormalizedBox = NewBox(c.Apply(box.Min), c.Apply(box.Max))
	return c, nil
}
