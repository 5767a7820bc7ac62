package tryonHandler

import (
	"TryOnService/internal/api/tryon"
	tryonService "TryOnService/internal/api/tryon/service"
	"TryOnService/internal/entity"
	contextPkg "TryOnService/pkg/context"
	"TryOnService/pkg/handlerUtil"
	"TryOnService/pkg/log"
	"TryOnService/pkg/overlay"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// upgradeSession parses the session query before the upgrade so the socket
// handler can report a bad query as an inline status.
func (h *TryOnHandler) upgradeSession(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	var q tryon.SessionQuery
	if err := c.QueryParser(&q); err != nil {
		c.Locals(localsQueryError, err)
	}
	c.Locals(localsSessionQuery, q)
	c.Locals(localsRequestID, h.middleware.GetRequestID(c))

	return c.Next()
}

// socketWriter serializes writes from the read loop and the update forwarder.
type socketWriter struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (w *socketWriter) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *socketWriter) ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.timeout))
}

func (w *socketWriter) status(level string, err error) error {
	return w.writeJSON(tryon.StatusMessage{
		Type:    tryon.MessageStatus,
		Level:   level,
		Code:    handlerUtil.Code(err),
		Message: err.Error(),
	})
}

func (w *socketWriter) close(code int, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(w.timeout))
}

func (h *TryOnHandler) handleSession(c *websocket.Conn) {
	requestID, _ := c.Locals(localsRequestID).(string)
	ctx := contextPkg.WithRequestID(context.Background(), requestID)
	l := h.log.WithField("request_id", requestID)

	w := &socketWriter{conn: c, timeout: h.socket.WriteTimeout}

	l.Info("Try-on websocket client connected")
	defer l.Info("Try-on websocket client disconnected")

	q, _ := c.Locals(localsSessionQuery).(tryon.SessionQuery)
	if err, ok := c.Locals(localsQueryError).(error); ok {
		h.rejectSession(w, l, fmt.Errorf("%w: %v", tryon.ErrInvalidMessage, err))
		return
	}
	if err := h.validator.Struct(q); err != nil {
		h.rejectSession(w, l, fmt.Errorf("%w: %v", tryon.ErrInvalidMessage, err))
		return
	}

	openCtx, cancel := context.WithTimeout(ctx, h.socket.OpenTimeout)
	req, err := h.resolveSession(openCtx, q)
	if err != nil {
		cancel()
		h.rejectSession(w, l, err)
		return
	}

	sess, err := h.tryonService.OpenSession(openCtx, req)
	cancel()
	if err != nil {
		h.rejectSession(w, l, err)
		return
	}
	defer sess.Close()

	l = log.WithSession(l, sess.ID())

	if err := w.writeJSON(tryon.ReadyMessage{
		Type:        tryon.MessageReady,
		SessionID:   sess.ID(),
		ProductName: sess.ProductName(),
		SizeMode:    sess.SizeMode(),
		Detection:   sess.Detection(),
		Asset:       sess.Asset(),
		Presets:     overlay.Presets(),
		SliderMin:   overlay.SliderMin,
		SliderMax:   overlay.SliderMax,
	}); err != nil {
		l.WithError(err).Warn("Failed to send ready message")
		return
	}

	stop := make(chan struct{})
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		h.forwardUpdates(w, sess, stop, l)
	}()

	h.readLoop(c, w, sess, l)

	close(stop)
	<-forwarded

	stats := sess.Stats()
	l.WithFields(log.Fields{
		"frames_received": stats.FramesReceived,
		"frames_dropped":  stats.FramesDropped,
	}).Debug("Try-on session finished")
}

// resolveSession fills the session request from the product profile; explicit
// query values win over profile values.
func (h *TryOnHandler) resolveSession(ctx context.Context, q tryon.SessionQuery) (tryon.OpenSessionRequest, error) {
	req := tryon.OpenSessionRequest{
		ModelURL:     strings.TrimSpace(q.ModelURL),
		DefaultScale: q.DefaultScale,
		ProductName:  q.ProductName,
		SizeMode:     tryon.SizeMode(q.SizeMode),
		Detection:    tryon.DetectionMode(q.Detection),
	}

	if q.ProductID == "" {
		return req, nil
	}

	profile, err := h.tryonService.Profile(ctx, q.ProductID)
	if err != nil {
		if req.ModelURL != "" && !errors.Is(err, tryon.ErrProfileNotFound) {
			// The caller supplied a model; the catalog is only a fallback.
			return req, nil
		}
		return req, err
	}

	if req.ModelURL == "" {
		req.ModelURL = profile.ModelURL
	}
	if req.DefaultScale == 0 {
		req.DefaultScale = profile.DefaultScale
	}
	if req.ProductName == "" {
		req.ProductName = profile.ProductName
	}
	return req, nil
}

func (h *TryOnHandler) rejectSession(w *socketWriter, l *logrus.Entry, err error) {
	l.WithFields(log.Fields{
		"error": err.Error(),
		"code":  handlerUtil.Code(err),
	}).Warn("Try-on session could not be opened")

	if writeErr := w.status("error", err); writeErr != nil {
		l.WithError(writeErr).Debug("Failed to send status message")
		return
	}
	w.close(websocket.ClosePolicyViolation, handlerUtil.Code(err))
}

func (h *TryOnHandler) forwardUpdates(w *socketWriter, sess tryonService.ISession, stop <-chan struct{}, l *logrus.Entry) {
	var ticker *time.Ticker
	var pings <-chan time.Time
	if h.socket.PingInterval > 0 {
		ticker = time.NewTicker(h.socket.PingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		case <-sess.Done():
			return
		case <-pings:
			if err := w.ping(); err != nil {
				l.WithError(err).Debug("Failed to send ping")
				return
			}
		case update := <-sess.Updates():
			if err := w.writeJSON(tryon.TransformMessage{
				Type:          tryon.MessageTransform,
				OverlayUpdate: update,
			}); err != nil {
				l.WithError(err).Debug("Failed to send transform")
				return
			}
		}
	}
}

func (h *TryOnHandler) readLoop(c *websocket.Conn, w *socketWriter, sess tryonService.ISession, l *logrus.Entry) {
	if h.socket.MaxMessageSize > 0 {
		c.SetReadLimit(h.socket.MaxMessageSize)
	}
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.socket.ReadTimeout))
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(h.socket.ReadTimeout)); err != nil {
			l.WithError(err).Error("Error setting read deadline")
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				l.WithError(err).Warn("Try-on websocket error")
			}
			return
		}

		var handleErr error
		switch messageType {
		case websocket.BinaryMessage:
			handleErr = sess.SubmitVideoFrame(message)
		case websocket.TextMessage:
			handleErr = h.handleMessage(sess, message)
		default:
			continue
		}

		if handleErr == nil {
			continue
		}
		if errors.Is(handleErr, tryon.ErrSessionClosed) {
			return
		}
		if err := w.status("warning", handleErr); err != nil {
			return
		}
	}
}

func (h *TryOnHandler) handleMessage(sess tryonService.ISession, payload []byte) error {
	var msg tryon.ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %v", tryon.ErrInvalidMessage, err)
	}
	if err := h.validator.Struct(msg); err != nil {
		return fmt.Errorf("%w: %v", tryon.ErrInvalidMessage, err)
	}

	switch msg.Type {
	case tryon.MessageLandmarks:
		frame := &entity.LandmarkFrame{Landmarks: msg.Landmarks}
		if msg.CapturedAt > 0 {
			frame.CapturedAt = time.UnixMilli(msg.CapturedAt)
		}
		return sess.SubmitLandmarks(frame)
	case tryon.MessageNoFace:
		return sess.SubmitNoFace()
	case tryon.MessageSize:
		switch {
		case msg.Slider != nil:
			return sess.SetSlider(*msg.Slider)
		case msg.Preset != "":
			preset, err := overlay.ParsePreset(msg.Preset)
			if err != nil {
				return fmt.Errorf("%w: %v", tryon.ErrInvalidSize, err)
			}
			return sess.SetPreset(preset)
		default:
			return fmt.Errorf("%w: size message needs a preset or a slider value", tryon.ErrInvalidSize)
		}
	}
	return tryon.ErrInvalidMessage
}
