package overlay

import "TryOnService/internal/entity"

// MissPolicy decides what a run of missed detections does to visibility. The
// transform itself never changes on a miss. HideAfter of zero keeps the last
// transform on screen indefinitely.
type MissPolicy struct {
	HideAfter int
}

// State is the per-session estimator state.
type State struct {
	Transform entity.OverlayTransform
	// Tracked is set once the first detection has produced a transform.
	Tracked  bool
	Visible  bool
	Detected bool
	Misses   int
}

// SizeInput is what the per-frame step reads from the UI-owned size control.
type SizeInput struct {
	BaseScale  float64
	Multiplier float64
}

// Reduce applies one detection event to state. A nil frame, or one without
// usable eye anchors, is a miss.
func (e *Estimator) Reduce(state State, frame *entity.LandmarkFrame, size SizeInput, policy MissPolicy) State {
	pair, ok := e.Anchors(frame)
	if !ok {
		state.Detected = false
		state.Misses++
		state.Visible = state.Tracked && !(policy.HideAfter > 0 && state.Misses >= policy.HideAfter)
		return state
	}

	return State{
		Transform: e.Estimate(pair, size.BaseScale, size.Multiplier),
		Tracked:   true,
		Visible:   true,
		Detected:  true,
		Misses:    0,
	}
}
