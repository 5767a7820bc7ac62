package overlay

import (
	"math"
	"testing"

	"TryOnService/internal/entity"
)

const eps = 1e-9

func newTestEstimator(t *testing.T) *Estimator {
	t.Helper()
	e, err := NewEstimator(DefaultParams())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

// frameWithEyes builds a frame large enough to hold both default eye indices.
func frameWithEyes(left, right entity.Point) *entity.LandmarkFrame {
	pts := make([]entity.Point, DefaultRightEyeIndex+1)
	pts[DefaultLeftEyeIndex] = left
	pts[DefaultRightEyeIndex] = right
	return &entity.LandmarkFrame{Landmarks: pts}
}

func pairAt(cx, cy, dist, theta float64) entity.EyeAnchorPair {
	hx := math.Cos(theta) * dist / 2
	hy := math.Sin(theta) * dist / 2
	return entity.EyeAnchorPair{
		Left:  entity.Point{X: cx - hx, Y: cy - hy},
		Right: entity.Point{X: cx + hx, Y: cy + hy},
	}
}

func TestEstimateExampleScenario(t *testing.T) {
	e := newTestEstimator(t)
	p := e.Params()
	pair := entity.EyeAnchorPair{Left: entity.Point{X: 0.4, Y: 0.5}, Right: entity.Point{X: 0.6, Y: 0.5}}

	medium, _ := SizeMedium.Multiplier()
	small, _ := SizeSmall.Multiplier()
	got := e.Estimate(pair, 1, medium)
	gotSmall := e.Estimate(pair, 1, small)

	if math.Abs(got.RotationZ) > eps {
		t.Errorf("rotation = %v, want 0", got.RotationZ)
	}
	if math.Abs(got.Position.X) > eps {
		t.Errorf("position.x = %v, want 0", got.Position.X)
	}
	if math.Abs(got.Position.Y-p.VerticalOffset) > eps {
		t.Errorf("position.y = %v, want vertical offset %v", got.Position.Y, p.VerticalOffset)
	}
	if got.Position.Z != p.Depth {
		t.Errorf("position.z = %v, want %v", got.Position.Z, p.Depth)
	}
	if got.Scale < p.MinScale || got.Scale > p.MaxScale {
		t.Errorf("scale %v outside [%v, %v]", got.Scale, p.MinScale, p.MaxScale)
	}
	if !(got.Scale > gotSmall.Scale) {
		t.Errorf("medium scale %v should exceed small scale %v", got.Scale, gotSmall.Scale)
	}
	want := 0.2 / p.ReferenceEyeDist * p.Tuning
	if math.Abs(got.Scale-want) > eps {
		t.Errorf("scale = %v, want %v", got.Scale, want)
	}
}

func TestEyeDistanceClamping(t *testing.T) {
	e := newTestEstimator(t)
	p := e.Params()

	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"far below band", 0.001, p.MinEyeDist},
		{"just below band", p.MinEyeDist * 0.99, p.MinEyeDist},
		{"inside band", 0.2, 0.2},
		{"just above band", p.MaxEyeDist * 1.01, p.MaxEyeDist},
		{"far above band", 0.9, p.MaxEyeDist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Estimate(pairAt(0.5, 0.5, tt.raw, 0), 1, 1)
			if math.Abs(got.EyeDistance-tt.want) > eps {
				t.Errorf("eye distance = %v, want %v", got.EyeDistance, tt.want)
			}
			wantScale := clamp(tt.want/p.ReferenceEyeDist*p.Tuning, p.MinScale, p.MaxScale)
			if math.Abs(got.Scale-wantScale) > eps {
				t.Errorf("scale = %v, want %v", got.Scale, wantScale)
			}
		})
	}
}

func TestScaleAlwaysWithinBounds(t *testing.T) {
	e := newTestEstimator(t)
	p := e.Params()

	for _, dist := range []float64{0, 0.01, 0.05, 0.1, 0.2, 0.35, 0.5, 1.4} {
		for _, base := range []float64{-1, 0, 0.01, 0.5, 1, 3, 50, math.Inf(1), math.NaN()} {
			for m := SliderMin; m <= SliderMax+eps; m += 0.25 {
				got := e.Estimate(pairAt(0.3, 0.7, dist, 0.4), base, m)
				if got.Scale < p.MinScale || got.Scale > p.MaxScale || math.IsNaN(got.Scale) {
					t.Fatalf("dist=%v base=%v m=%v: scale %v outside [%v, %v]",
						dist, base, m, got.Scale, p.MinScale, p.MaxScale)
				}
			}
		}
	}
}

func TestRotation(t *testing.T) {
	e := newTestEstimator(t)

	level := e.Estimate(entity.EyeAnchorPair{
		Left:  entity.Point{X: 0.35, Y: 0.42},
		Right: entity.Point{X: 0.61, Y: 0.42},
	}, 1, 1)
	if level.RotationZ != 0 || math.Signbit(level.RotationZ) {
		t.Errorf("level eyes rotation = %v, want +0", level.RotationZ)
	}

	for _, theta := range []float64{-0.6, -0.2, 0.1, 0.3, 0.75} {
		got := e.Estimate(pairAt(0.5, 0.5, 0.18, theta), 1, 1)
		if math.Abs(got.RotationZ+theta) > 1e-9 {
			t.Errorf("theta=%v: rotation = %v, want %v", theta, got.RotationZ, -theta)
		}
	}
}

func TestScaleMonotonicInSizeControl(t *testing.T) {
	e := newTestEstimator(t)
	pair := pairAt(0.5, 0.5, 0.2, 0)

	prev := 0.0
	for _, info := range Presets() {
		got := e.Estimate(pair, 1, info.Multiplier).Scale
		if got <= prev {
			t.Errorf("preset %s scale %v not greater than previous %v", info.Preset, got, prev)
		}
		prev = got
	}

	p := e.Params()
	prev = 0
	for m := SliderMin; m <= SliderMax+eps; m += 0.1 {
		got := e.Estimate(pair, 1, m).Scale
		if got == p.MaxScale || got == p.MinScale {
			break
		}
		if got <= prev {
			t.Errorf("slider %v scale %v not greater than previous %v", m, got, prev)
		}
		prev = got
	}
}

func TestPositionMapping(t *testing.T) {
	e := newTestEstimator(t)
	p := e.Params()

	got := e.Estimate(pairAt(0.75, 0.25, 0.2, 0), 1, 1)
	if math.Abs(got.Position.X-0.25*p.SceneWidth) > eps {
		t.Errorf("x = %v, want %v", got.Position.X, 0.25*p.SceneWidth)
	}
	if math.Abs(got.Position.Y-(0.25*p.SceneHeight+p.VerticalOffset)) > eps {
		t.Errorf("y = %v, want %v", got.Position.Y, 0.25*p.SceneHeight+p.VerticalOffset)
	}
}

func TestAnchors(t *testing.T) {
	e := newTestEstimator(t)

	if _, ok := e.Anchors(nil); ok {
		t.Error("nil frame should have no anchors")
	}
	if _, ok := e.Anchors(&entity.LandmarkFrame{Landmarks: make([]entity.Point, 10)}); ok {
		t.Error("short frame should have no anchors")
	}
	if _, ok := e.Anchors(frameWithEyes(entity.Point{X: math.NaN()}, entity.Point{X: 0.5})); ok {
		t.Error("NaN landmark should have no anchors")
	}

	left := entity.Point{X: 0.4, Y: 0.5}
	right := entity.Point{X: 0.6, Y: 0.51}
	pair, ok := e.Anchors(frameWithEyes(left, right))
	if !ok || pair.Left != left || pair.Right != right {
		t.Errorf("anchors = %+v, %v", pair, ok)
	}
}

func TestReduceMissKeepsTransform(t *testing.T) {
	e := newTestEstimator(t)
	size := SizeInput{BaseScale: 1, Multiplier: 1}
	policy := MissPolicy{}

	var state State
	state = e.Reduce(state, nil, size, policy)
	if state.Tracked || state.Visible {
		t.Fatalf("miss before first detection should stay untracked: %+v", state)
	}

	events := []*entity.LandmarkFrame{
		frameWithEyes(entity.Point{X: 0.4, Y: 0.5}, entity.Point{X: 0.6, Y: 0.5}),
		nil,
		nil,
		frameWithEyes(entity.Point{X: 0.3, Y: 0.4}, entity.Point{X: 0.55, Y: 0.45}),
		{Landmarks: nil},
		nil,
	}
	for i, ev := range events {
		before := state.Transform
		state = e.Reduce(state, ev, size, policy)
		if _, ok := e.Anchors(ev); !ok {
			if state.Transform != before {
				t.Fatalf("event %d: miss changed transform from %+v to %+v", i, before, state.Transform)
			}
			if !state.Visible {
				t.Fatalf("event %d: frozen overlay should stay visible", i)
			}
		} else if !state.Detected || state.Misses != 0 {
			t.Fatalf("event %d: detection not recorded: %+v", i, state)
		}
	}
	if state.Misses != 2 {
		t.Errorf("misses = %d, want 2", state.Misses)
	}
}

func TestReduceHideAfterMisses(t *testing.T) {
	e := newTestEstimator(t)
	size := SizeInput{BaseScale: 1, Multiplier: 1}
	policy := MissPolicy{HideAfter: 3}

	state := e.Reduce(State{}, frameWithEyes(entity.Point{X: 0.4, Y: 0.5}, entity.Point{X: 0.6, Y: 0.5}), size, policy)
	want := state.Transform
	for i := 1; i <= 4; i++ {
		state = e.Reduce(state, nil, size, policy)
		if state.Transform != want {
			t.Fatalf("miss %d changed transform", i)
		}
		if wantVisible := i < 3; state.Visible != wantVisible {
			t.Errorf("miss %d: visible = %v, want %v", i, state.Visible, wantVisible)
		}
	}
}

func TestNewEstimatorRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"same eye index", func(p *Params) { p.RightEyeIndex = p.LeftEyeIndex }},
		{"inverted eye band", func(p *Params) { p.MinEyeDist, p.MaxEyeDist = 0.4, 0.1 }},
		{"zero reference", func(p *Params) { p.ReferenceEyeDist = 0 }},
		{"inverted scale band", func(p *Params) { p.MinScale, p.MaxScale = 2, 1 }},
		{"nan offset", func(p *Params) { p.VerticalOffset = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if _, err := NewEstimator(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}
