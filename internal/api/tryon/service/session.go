package tryonService

import (
	"TryOnService/internal/api/tryon"
	"TryOnService/internal/entity"
	"TryOnService/pkg/log"
	"TryOnService/pkg/overlay"
	websocketPkg "TryOnService/pkg/websocket"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type ISession interface {
	ID() string
	Asset() entity.NormalizedModelAsset
	ProductName() string
	SizeMode() tryon.SizeMode
	Detection() tryon.DetectionMode

	SubmitLandmarks(frame *entity.LandmarkFrame) error
	SubmitNoFace() error
	SubmitVideoFrame(frame []byte) error

	SetPreset(p overlay.SizePreset) error
	SetSlider(v float64) error

	// Updates carries only the most recent transform; a slow reader skips
	// intermediate ones.
	Updates() <-chan entity.OverlayUpdate
	Latest() (entity.OverlayUpdate, bool)
	Stats() tryon.SessionStats
	// Done is closed once the frame loop has exited.
	Done() <-chan struct{}
	Close()
}

type SessionOption func(*sessionOptions)

type sessionOptions struct {
	detector  websocketPkg.ILandmarkDetector
	resources []resource
}

// WithDetector hands an already acquired detector to the session. The session
// owns it from then on, including when opening fails.
func WithDetector(d websocketPkg.ILandmarkDetector) SessionOption {
	return func(o *sessionOptions) {
		o.detector = d
	}
}

// WithResource hands an extra capture resource to the session, released on Close.
func WithResource(name string, c io.Closer) SessionOption {
	return func(o *sessionOptions) {
		o.resources = append(o.resources, resource{name: name, closer: c})
	}
}

type resource struct {
	name   string
	closer io.Closer
}

type frameKind int

const (
	frameLandmarks frameKind = iota
	frameVideo
)

type frameEvent struct {
	kind      frameKind
	landmarks *entity.LandmarkFrame
	video     []byte
}

type session struct {
	id          string
	log         *logrus.Entry
	asset       entity.NormalizedModelAsset
	productName string
	sizeMode    tryon.SizeMode
	detection   tryon.DetectionMode

	estimator *overlay.Estimator
	policy    overlay.MissPolicy
	baseScale float64
	size      *overlay.SizeControl

	detector      websocketPkg.ILandmarkDetector
	detectTimeout time.Duration
	prepare       func([]byte) ([]byte, error)
	resources     []resource

	frames  chan frameEvent
	updates chan entity.OverlayUpdate
	latest  atomic.Pointer[entity.OverlayUpdate]

	// Owned by the frame loop.
	state    overlay.State
	sequence uint64

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	received   atomic.Uint64
	processed  atomic.Uint64
	dropped    atomic.Uint64
	missed     atomic.Uint64
	detectErrs atomic.Uint64
	lastUpdate atomic.Int64
}

type sessionConfig struct {
	id            string
	log           *logrus.Entry
	asset         entity.NormalizedModelAsset
	productName   string
	sizeMode      tryon.SizeMode
	detection     tryon.DetectionMode
	estimator     *overlay.Estimator
	policy        overlay.MissPolicy
	baseScale     float64
	queueSize     int
	detector      websocketPkg.ILandmarkDetector
	detectTimeout time.Duration
	prepare       func([]byte) ([]byte, error)
	resources     []resource
}

func newSession(cfg sessionConfig) *session {
	ctx, cancel := context.WithCancel(context.Background())

	s := &session{
		id:            cfg.id,
		log:           cfg.log,
		asset:         cfg.asset,
		productName:   cfg.productName,
		sizeMode:      cfg.sizeMode,
		detection:     cfg.detection,
		estimator:     cfg.estimator,
		policy:        cfg.policy,
		baseScale:     cfg.baseScale,
		size:          overlay.NewSizeControl(),
		detector:      cfg.detector,
		detectTimeout: cfg.detectTimeout,
		prepare:       cfg.prepare,
		resources:     cfg.resources,
		frames:        make(chan frameEvent, cfg.queueSize),
		updates:       make(chan entity.OverlayUpdate, 1),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	if s.detector != nil {
		s.resources = append([]resource{{name: "detector", closer: s.detector}}, s.resources...)
	}

	go s.run()
	return s
}

func (s *session) ID() string                         { return s.id }
func (s *session) Asset() entity.NormalizedModelAsset { return s.asset }
func (s *session) ProductName() string                { return s.productName }
func (s *session) SizeMode() tryon.SizeMode           { return s.sizeMode }
func (s *session) Detection() tryon.DetectionMode     { return s.detection }
func (s *session) Done() <-chan struct{}              { return s.done }

func (s *session) Updates() <-chan entity.OverlayUpdate {
	return s.updates
}

func (s *session) Latest() (entity.OverlayUpdate, bool) {
	if u := s.latest.Load(); u != nil {
		return *u, true
	}
	return entity.OverlayUpdate{}, false
}

func (s *session) SubmitLandmarks(frame *entity.LandmarkFrame) error {
	return s.submit(frameEvent{kind: frameLandmarks, landmarks: frame})
}

func (s *session) SubmitNoFace() error {
	return s.submit(frameEvent{kind: frameLandmarks})
}

func (s *session) SubmitVideoFrame(frame []byte) error {
	if s.detector == nil {
		return tryon.ErrDetectorUnavailable
	}
	return s.submit(frameEvent{kind: frameVideo, video: frame})
}

// submit never blocks; when the loop is behind the frame is dropped.
func (s *session) submit(ev frameEvent) error {
	if s.ctx.Err() != nil {
		return tryon.ErrSessionClosed
	}

	s.received.Add(1)
	select {
	case s.frames <- ev:
	default:
		s.dropped.Add(1)
	}
	return nil
}

func (s *session) SetPreset(p overlay.SizePreset) error {
	if s.sizeMode != tryon.SizeModePreset {
		return fmt.Errorf("%w: session uses %s size mode", tryon.ErrInvalidSize, s.sizeMode)
	}
	if err := s.size.SetPreset(p); err != nil {
		return fmt.Errorf("%w: %v", tryon.ErrInvalidSize, err)
	}
	return nil
}

func (s *session) SetSlider(v float64) error {
	if s.sizeMode != tryon.SizeModeSlider {
		return fmt.Errorf("%w: session uses %s size mode", tryon.ErrInvalidSize, s.sizeMode)
	}
	if err := s.size.SetSlider(v); err != nil {
		return fmt.Errorf("%w: %v", tryon.ErrInvalidSize, err)
	}
	return nil
}

func (s *session) Stats() tryon.SessionStats {
	stats := tryon.SessionStats{
		FramesReceived:  s.received.Load(),
		FramesProcessed: s.processed.Load(),
		FramesDropped:   s.dropped.Load(),
		FramesMissed:    s.missed.Load(),
		DetectorErrors:  s.detectErrs.Load(),
	}
	stats.SizeMultiplier, stats.SizePreset = s.size.Snapshot()
	if ns := s.lastUpdate.Load(); ns > 0 {
		stats.LastUpdate = time.Unix(0, ns)
	}
	return stats
}

func (s *session) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case ev := <-s.frames:
			if s.ctx.Err() != nil {
				return
			}
			s.process(ev)
		}
	}
}

func (s *session) process(ev frameEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("Recovered from panic while processing frame")
		}
	}()

	frame := ev.landmarks
	if ev.kind == frameVideo {
		frame = s.detect(ev.video)
	}

	s.state = s.estimator.Reduce(s.state, frame, overlay.SizeInput{
		BaseScale:  s.baseScale,
		Multiplier: s.size.Multiplier(),
	}, s.policy)

	s.publish()

	if !s.state.Detected {
		s.missed.Add(1)
	}
	s.processed.Add(1)
}

// detect runs the remote detector; any failure counts as a frame without a face.
func (s *session) detect(video []byte) *entity.LandmarkFrame {
	data := video
	if s.prepare != nil {
		prepared, err := s.prepare(video)
		if err != nil {
			s.detectErrs.Add(1)
			s.log.WithError(err).Warn("Failed to prepare video frame")
			return nil
		}
		data = prepared
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.detectTimeout)
	defer cancel()

	frame, err := s.detector.Detect(ctx, data)
	if err != nil {
		s.detectErrs.Add(1)
		s.log.WithError(err).Warn("Landmark detection failed")
		return nil
	}
	return frame
}

func (s *session) publish() {
	s.sequence++
	now := time.Now()
	update := entity.OverlayUpdate{
		Sequence:  s.sequence,
		Transform: s.state.Transform,
		Visible:   s.state.Visible,
		Detected:  s.state.Detected,
		Misses:    s.state.Misses,
		UpdatedAt: now,
	}
	s.latest.Store(&update)
	s.lastUpdate.Store(now.UnixNano())

	// Only this goroutine sends, so after draining there is room.
	select {
	case <-s.updates:
	default:
	}
	s.updates <- update
}

// Close stops the frame loop and releases every resource. Each release is
// attempted even if an earlier one fails or panics.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		// Releasing first unblocks a loop waiting on the detector.
		releaseAll(s.log, s.resources)
		<-s.done

		stats := s.Stats()
		s.log.WithFields(log.Fields{
			"frames_received":  stats.FramesReceived,
			"frames_processed": stats.FramesProcessed,
			"frames_dropped":   stats.FramesDropped,
			"frames_missed":    stats.FramesMissed,
			"size_multiplier":  stats.SizeMultiplier,
		}).Info("Try-on session closed")
	})
}

func releaseAll(l logrus.FieldLogger, resources []resource) {
	for i := len(resources) - 1; i >= 0; i-- {
		release(l, resources[i])
	}
}

func release(l logrus.FieldLogger, r resource) {
	defer func() {
		if p := recover(); p != nil {
			l.WithFields(log.Fields{
				"resource": r.name,
				"panic":    p,
			}).Error("Recovered from panic while releasing resource")
		}
	}()

	if r.closer == nil {
		return
	}
	if err := r.closer.Close(); err != nil {
		l.WithFields(log.Fields{
			"resource": r.name,
			"error":    err.Error(),
		}).Warn("Failed to release resource")
	}
}
