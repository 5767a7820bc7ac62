package websocketPkg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"TryOnService/internal/entity"
	"TryOnService/pkg/log"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var (
	ErrDetectorClosed = errors.New("landmark detector closed")
	ErrDetectorFailed = errors.New("landmark detector reported an error")
)

// ILandmarkDetector is a face-mesh service connection owned by one try-on
// session. Detect returns nil when the frame holds no face.
type ILandmarkDetector interface {
	Detect(ctx context.Context, frame []byte) (*entity.LandmarkFrame, error)
	Close() error
}

type Options struct {
	PingInterval     time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	Logger           logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{
		PingInterval:     30 * time.Second,
		ReadTimeout:      10 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

func FaceMeshURL() string {
	url := os.Getenv("AI_FACE_MESH_URL")
	if url == "" {
		url = "ws://localhost:8000/api/v1/face-mesh/ws"
	}
	return url
}

type landmarkClient struct {
	url    string
	dialer websocket.Dialer
	opts   Options
	log    logrus.FieldLogger

	// mu serializes frame round-trips.
	mu sync.Mutex

	// connMu guards conn and connDone. A nil conn means the last round-trip
	// failed and the next Detect redials.
	connMu   sync.Mutex
	conn     *websocket.Conn
	connDone chan struct{}

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the face-mesh service.
func Dial(ctx context.Context, url string, opts Options) (ILandmarkDetector, error) {
	if url == "" {
		return nil, fmt.Errorf("face mesh URL not configured")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger()
	}

	c := &landmarkClient{
		url: url,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		opts: opts,
		log:  opts.Logger,
		done: make(chan struct{}),
	}

	if _, err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *landmarkClient) connect(ctx context.Context) (*websocket.Conn, error) {
	c.log.WithField("url", c.url).Debug("Connecting to face mesh service")

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.opts.WriteTimeout))
		if err != nil {
			c.log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	c.connMu.Lock()
	defer c.connMu.Unlock()

	select {
	case <-c.done:
		conn.Close()
		return nil, ErrDetectorClosed
	default:
	}

	c.conn = conn
	c.connDone = make(chan struct{})
	if c.opts.PingInterval > 0 {
		go c.keepAlive(conn, c.connDone)
	}
	return conn, nil
}

func (c *landmarkClient) current() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

// drop closes a connection left in an unknown state.
func (c *landmarkClient) drop(conn *websocket.Conn, reason error) {
	c.connMu.Lock()
	if c.conn == conn {
		close(c.connDone)
		c.conn = nil
		c.connDone = nil
	}
	c.connMu.Unlock()

	select {
	case <-c.done:
	default:
		c.log.WithError(reason).Warn("Dropping face mesh connection, reconnecting on next frame")
	}
	conn.Close()
}

func (c *landmarkClient) keepAlive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.opts.WriteTimeout))
			if err != nil {
				c.log.Warnf("Ping to face mesh service failed: %v", err)
				return
			}
		}
	}
}

// Detect sends one frame and waits for its result. A failed round-trip leaves
// the connection out of step with the service, so it is dropped and the next
// call redials.
func (c *landmarkClient) Detect(ctx context.Context, frame []byte) (*entity.LandmarkFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return nil, ErrDetectorClosed
	default:
	}

	conn := c.current()
	if conn == nil {
		var err error
		if conn, err = c.connect(ctx); err != nil {
			return nil, err
		}
	}

	if err := conn.SetWriteDeadline(c.deadline(ctx, c.opts.WriteTimeout)); err != nil {
		c.drop(conn, err)
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.drop(conn, err)
		return nil, fmt.Errorf("error sending frame: %w", err)
	}

	if err := conn.SetReadDeadline(c.deadline(ctx, c.opts.ReadTimeout)); err != nil {
		c.drop(conn, err)
		return nil, err
	}
	_, message, err := conn.ReadMessage()
	if err != nil {
		c.drop(conn, err)
		return nil, fmt.Errorf("error reading landmarks: %w", err)
	}

	var result entity.LandmarkDetectionResult
	if err := jsoniter.Unmarshal(message, &result); err != nil {
		c.drop(conn, err)
		return nil, fmt.Errorf("error unmarshaling landmarks: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrDetectorFailed, result.Error)
	}
	if len(result.Faces) == 0 {
		return nil, nil
	}

	return &entity.LandmarkFrame{
		Landmarks:  result.Faces[0].Landmarks,
		CapturedAt: time.Now(),
	}, nil
}

func (c *landmarkClient) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// Close is safe to call more than once and from any goroutine. It does not
// wait for an in-flight Detect; closing the socket unblocks it.
func (c *landmarkClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)

		c.connMu.Lock()
		conn := c.conn
		if c.connDone != nil {
			close(c.connDone)
		}
		c.conn = nil
		c.connDone = nil
		c.connMu.Unlock()

		if conn == nil {
			return
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout)); err != nil {
			c.log.Debugf("Error sending close frame: %v", err)
		}
		c.closeErr = conn.Close()
	})
	return c.closeErr
}
