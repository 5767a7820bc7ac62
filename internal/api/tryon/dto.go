package tryon

import (
	"TryOnService/internal/entity"
	"TryOnService/pkg/overlay"
	"time"
)

type DetectionMode string

const (
	// DetectionClient means the view runs the face-mesh itself and streams landmarks.
	DetectionClient DetectionMode = "client"
	// DetectionServer means the view streams video frames for the remote detector.
	DetectionServer DetectionMode = "server"
)

type SizeMode string

const (
	SizeModePreset SizeMode = "preset"
	SizeModeSlider SizeMode = "slider"
)

// Client -> server websocket message types.
const (
	MessageLandmarks = "landmarks"
	MessageNoFace    = "no_face"
	MessageSize      = "size"
)

// Server -> client websocket message types.
const (
	MessageReady     = "ready"
	MessageTransform = "transform"
	MessageStatus    = "status"
)

type SessionQuery struct {
	ProductID    string  `query:"product_id" validate:"omitempty,max=64"`
	ModelURL     string  `query:"model_url" validate:"omitempty,max=2048"`
	DefaultScale float64 `query:"default_scale" validate:"omitempty,gt=0,lte=10"`
	ProductName  string  `query:"product_name" validate:"omitempty,max=255"`
	SizeMode     string  `query:"size_mode" validate:"omitempty,oneof=preset slider"`
	Detection    string  `query:"detection" validate:"omitempty,oneof=client server"`
}

type OpenSessionRequest struct {
	ModelURL     string
	DefaultScale float64
	ProductName  string
	SizeMode     SizeMode
	Detection    DetectionMode
}

type ClientMessage struct {
	Type       string         `json:"type" validate:"required,oneof=landmarks no_face size"`
	Landmarks  []entity.Point `json:"landmarks,omitempty"`
	CapturedAt int64          `json:"captured_at,omitempty"`
	Preset     string         `json:"preset,omitempty"`
	Slider     *float64       `json:"slider,omitempty"`
}

type ReadyMessage struct {
	Type        string                      `json:"type"`
	SessionID   string                      `json:"session_id"`
	ProductName string                      `json:"product_name,omitempty"`
	SizeMode    SizeMode                    `json:"size_mode"`
	Detection   DetectionMode               `json:"detection"`
	Asset       entity.NormalizedModelAsset `json:"asset"`
	Presets     []overlay.PresetInfo        `json:"presets"`
	SliderMin   float64                     `json:"slider_min"`
	SliderMax   float64                     `json:"slider_max"`
}

type TransformMessage struct {
	Type string `json:"type"`
	entity.OverlayUpdate
}

type StatusMessage struct {
	Type    string `json:"type"`
	Level   string `json:"level"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type EstimateRequest struct {
	Landmarks    []entity.Point           `json:"landmarks" validate:"omitempty,min=1"`
	Previous     *entity.OverlayTransform `json:"previous,omitempty"`
	Misses       int                      `json:"misses" validate:"gte=0"`
	DefaultScale float64                  `json:"default_scale" validate:"omitempty,gt=0,lte=10"`
	Preset       string                   `json:"preset" validate:"omitempty,oneof=small medium large"`
	Slider       *float64                 `json:"slider,omitempty" validate:"omitempty,gte=0.5,lte=2"`
}

type EstimateResponse struct {
	Transform entity.OverlayTransform `json:"transform"`
	Visible   bool                    `json:"visible"`
	Detected  bool                    `json:"detected"`
	Misses    int                     `json:"misses"`
}

type NormalizeAssetRequest struct {
	ModelURL string `json:"model_url" validate:"required,max=2048"`
}

type AssetResponse struct {
	Data entity.NormalizedModelAsset `json:"data"`
}

type ProfileResponse struct {
	Data entity.TryOnProfile `json:"data"`
}

type PresetsResponse struct {
	Presets       []overlay.PresetInfo `json:"presets"`
	DefaultPreset overlay.SizePreset   `json:"default_preset"`
	SliderMin     float64              `json:"slider_min"`
	SliderMax     float64              `json:"slider_max"`
	Neutral       float64              `json:"neutral"`
}

type SessionStats struct {
	FramesReceived  uint64             `json:"frames_received"`
	FramesProcessed uint64             `json:"frames_processed"`
	FramesDropped   uint64             `json:"frames_dropped"`
	FramesMissed    uint64             `json:"frames_missed"`
	DetectorErrors  uint64             `json:"detector_errors"`
	SizeMultiplier  float64            `json:"size_multiplier"`
	SizePreset      overlay.SizePreset `json:"size_preset,omitempty"`
	LastUpdate      time.Time          `json:"last_update"`
}

type ProfileListResponse struct {
	Data  []entity.TryOnProfile `json:"data"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}
