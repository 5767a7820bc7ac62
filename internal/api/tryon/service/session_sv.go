package tryonService

import (
	"TryOnService/internal/api/tryon"
	"TryOnService/internal/entity"
	contextPkg "TryOnService/pkg/context"
	"TryOnService/pkg/log"
	"TryOnService/pkg/overlay"
	websocketPkg "TryOnService/pkg/websocket"
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

func (s *tryOnService) OpenSession(ctx context.Context, req tryon.OpenSessionRequest, opts ...SessionOption) (ISession, error) {
	requestID := contextPkg.GetRequestID(ctx)

	so := sessionOptions{}
	for _, opt := range opts {
		opt(&so)
	}

	acquired := so.resources
	if so.detector != nil {
		acquired = append([]resource{{name: "detector", closer: so.detector}}, acquired...)
	}
	fail := func(err error) (ISession, error) {
		releaseAll(s.log.WithField("request_id", requestID), acquired)
		return nil, err
	}

	sizeMode := req.SizeMode
	switch sizeMode {
	case "":
		sizeMode = tryon.SizeModePreset
	case tryon.SizeModePreset, tryon.SizeModeSlider:
	default:
		return fail(fmt.Errorf("%w: unknown size mode %q", tryon.ErrInvalidSize, sizeMode))
	}

	detection := req.Detection
	if detection == "" {
		detection = tryon.DetectionClient
		if so.detector != nil {
			detection = tryon.DetectionServer
		}
	}
	if detection != tryon.DetectionClient && detection != tryon.DetectionServer {
		return fail(fmt.Errorf("%w: unknown detection mode %q", tryon.ErrInvalidMessage, detection))
	}

	baseScale := req.DefaultScale
	if math.IsNaN(baseScale) || math.IsInf(baseScale, 0) || baseScale < 0 {
		return fail(tryon.ErrInvalidDefaultScale)
	}
	if baseScale == 0 {
		baseScale = 1
	}

	asset, err := s.LoadAsset(ctx, req.ModelURL)
	if err != nil {
		return fail(err)
	}
	asset.DownloadURL = s.downloadURL(ctx, requestID, asset.ModelURL)

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return fail(fmt.Errorf("failed to generate session id: %w", err))
	}

	detector := so.detector
	if detection == tryon.DetectionServer && detector == nil {
		dialOpts := websocketPkg.DefaultOptions()
		dialOpts.Logger = s.log.WithField("session_id", id)

		detector, err = s.dial(ctx, s.cfg.FaceMeshURL, dialOpts)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": id,
				"error":      err.Error(),
			}).Error("Failed to acquire landmark detector")
			return fail(fmt.Errorf("%w: %v", tryon.ErrDetectorUnavailable, err))
		}
	}

	var prepare func([]byte) ([]byte, error)
	if s.cfg.FrameMaxWidth > 0 {
		maxWidth, quality := s.cfg.FrameMaxWidth, s.cfg.FrameQuality
		prepare = func(frame []byte) ([]byte, error) {
			return s.utils.DownscaleFrame(frame, maxWidth, quality)
		}
	}

	sessionLog := log.WithSession(s.log.WithField("request_id", requestID), id)
	sess := newSession(sessionConfig{
		id:            id,
		log:           sessionLog,
		asset:         *asset,
		productName:   strings.TrimSpace(req.ProductName),
		sizeMode:      sizeMode,
		detection:     detection,
		estimator:     s.estimator,
		policy:        s.cfg.MissPolicy,
		baseScale:     baseScale,
		queueSize:     s.cfg.QueueSize,
		detector:      detector,
		detectTimeout: s.cfg.DetectTimeout,
		prepare:       prepare,
		resources:     so.resources,
	})

	sessionLog.WithFields(logrus.Fields{
		"model_url":  asset.ModelURL,
		"detection":  detection,
		"size_mode":  sizeMode,
		"base_scale": baseScale,
	}).Info("Try-on session opened")

	return sess, nil
}

// Estimate runs a single reducer step without a session.
func (s *tryOnService) Estimate(ctx context.Context, req tryon.EstimateRequest) (*tryon.EstimateResponse, error) {
	size := overlay.NewSizeControl()
	if req.Preset != "" {
		preset, err := overlay.ParsePreset(req.Preset)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", tryon.ErrInvalidSize, err)
		}
		if err := size.SetPreset(preset); err != nil {
			return nil, fmt.Errorf("%w: %v", tryon.ErrInvalidSize, err)
		}
	}
	if req.Slider != nil {
		if err := size.SetSlider(*req.Slider); err != nil {
			return nil, fmt.Errorf("%w: %v", tryon.ErrInvalidSize, err)
		}
	}

	if req.DefaultScale < 0 || math.IsNaN(req.DefaultScale) || math.IsInf(req.DefaultScale, 0) {
		return nil, tryon.ErrInvalidDefaultScale
	}

	state := overlay.State{Misses: req.Misses}
	if req.Previous != nil {
		state.Transform = *req.Previous
		state.Tracked = true
		state.Visible = true
	}

	var frame *entity.LandmarkFrame
	if len(req.Landmarks) > 0 {
		frame = &entity.LandmarkFrame{Landmarks: req.Landmarks}
	}

	next := s.estimator.Reduce(state, frame, overlay.SizeInput{
		BaseScale:  req.DefaultScale,
		Multiplier: size.Multiplier(),
	}, s.cfg.MissPolicy)

	return &tryon.EstimateResponse{
		Transform: next.Transform,
		Visible:   next.Visible,
		Detected:  next.Detected,
		Misses:    next.Misses,
	}, nil
}

func (s *tryOnService) Presets() tryon.PresetsResponse {
	return tryon.PresetsResponse{
		Presets:       overlay.Presets(),
		DefaultPreset: overlay.DefaultPreset,
		SliderMin:     overlay.SliderMin,
		SliderMax:     overlay.SliderMax,
		Neutral:       overlay.NeutralScale,
	}
}
