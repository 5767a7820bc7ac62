package model3d

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
)

const tol = 1e-9

func TestNormalizeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	opts := DefaultOptions()

	for i := 0; i < 200; i++ {
		min := r3.Vector{X: rng.Float64()*200 - 100, Y: rng.Float64()*200 - 100, Z: rng.Float64()*200 - 100}
		size := r3.Vector{X: 0.01 + rng.Float64()*50, Y: rng.Float64() * 30, Z: rng.Float64() * 80}
		box := NewBox(min, min.Add(size))

		c, err := Normalize(box, opts)
		if err != nil {
			t.Fatalf("box %d: %v", i, err)
		}

		// Recompute the bounds from the transformed corners.
		got := EmptyBox()
		for _, corner := range box.Corners() {
			got = got.Extend(c.Apply(corner))
		}

		gotSize := got.Size()
		if math.Abs(gotSize.X-opts.TargetWidth) > tol {
			t.Fatalf("box %d: width = %v, want %v", i, gotSize.X, opts.TargetWidth)
		}
		center := got.Center()
		if math.Abs(center.X) > tol || math.Abs(center.Z) > tol {
			t.Fatalf("box %d: center = %v, want x=z=0", i, center)
		}
		wantY := -opts.OpticalFraction * gotSize.Y
		if math.Abs(center.Y-wantY) > tol {
			t.Fatalf("box %d: center.y = %v, want %v", i, center.Y, wantY)
		}

		lens := box.Center().Add(r3.Vector{Y: opts.OpticalFraction * size.Y})
		if y := c.Apply(lens).Y; math.Abs(y) > tol {
			t.Fatalf("box %d: lens line maps to y=%v, want 0", i, y)
		}

		if c.NormalizedBox.Min.Sub(got.Min).Norm() > tol || c.NormalizedBox.Max.Sub(got.Max).Norm() > tol {
			t.Fatalf("box %d: NormalizedBox %v != recomputed %v", i, c.NormalizedBox, got)
		}
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	box := NewBox(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{X: 5, Y: 4, Z: 6})
	orig := box
	c, err := Normalize(box, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if box != orig || c.SourceBox != orig {
		t.Errorf("input box changed: %v, source %v", box, c.SourceBox)
	}
}

func TestNormalizeDegenerate(t *testing.T) {
	tests := []struct {
		name string
		box  Box3
	}{
		{"empty", EmptyBox()},
		{"zero width", NewBox(r3.Vector{X: 1, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 2, Z: 2})},
		{"inverted", NewBox(r3.Vector{X: 2}, r3.Vector{X: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(tt.box, DefaultOptions()); !errors.Is(err, ErrDegenerateModel) {
				t.Errorf("error = %v, want ErrDegenerateModel", err)
			}
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	bad := []Options{
		{TargetWidth: 0, OpticalFraction: 0.4},
		{TargetWidth: -1, OpticalFraction: 0.4},
		{TargetWidth: 1, OpticalFraction: 0.5},
		{TargetWidth: 1, OpticalFraction: -0.1},
		{TargetWidth: math.Inf(1), OpticalFraction: 0.4},
	}
	for _, o := range bad {
		if err := o.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil, want error", o)
		}
	}
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("default options invalid: %v", err)
	}
}
