package entity

import "time"

// Point is a normalized landmark coordinate. X and Y are in [0,1] video space,
// Z is the detector's relative depth and is ignored by the estimator.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// LandmarkFrame is one face's landmark set for a single video frame.
type LandmarkFrame struct {
	Landmarks  []Point   `json:"landmarks"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
}

type EyeAnchorPair struct {
	Left  Point `json:"left"`
	Right Point `json:"right"`
}

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type OverlayTransform struct {
	Position    Vec3    `json:"position"`
	Scale       float64 `json:"scale"`
	RotationZ   float64 `json:"rotation_z"`
	EyeDistance float64 `json:"eye_distance"`
}

type OverlayUpdate struct {
	Sequence  uint64           `json:"seq"`
	Transform OverlayTransform `json:"transform"`
	Visible   bool             `json:"visible"`
	Detected  bool             `json:"detected"`
	Misses    int              `json:"misses"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// FaceLandmarks is a single face as returned by the remote face-mesh service.
type FaceLandmarks struct {
	Landmarks []Point `json:"landmarks"`
	Score     float64 `json:"score,omitempty"`
}

type LandmarkDetectionResult struct {
	Faces  []FaceLandmarks `json:"faces"`
	Width  int             `json:"width,omitempty"`
	Height int             `json:"height,omitempty"`
	Error  string          `json:"error,omitempty"`
}
