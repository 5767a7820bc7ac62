// Package camera captures MJPEG frames from a local V4L2 device.
package camera

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
)

// V4L2 fourcc for Motion-JPEG.
const pixelFormatMJPEG webcam.PixelFormat = 0x47504A4D

const waitTimeoutSeconds = 1

var (
	ErrClosed    = errors.New("camera closed")
	ErrNoMJPEG   = errors.New("device does not support MJPEG")
	ErrStreaming = errors.New("camera is already streaming")
)

// FrameFunc receives a copy of each captured frame. Returning an error stops the stream.
type FrameFunc func(frame []byte) error

type Camera struct {
	device string
	cam    *webcam.Webcam
	width  uint32
	height uint32

	streaming atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Open acquires the device and negotiates MJPEG at the frame size closest to width x height.
func Open(device string, width, height uint32) (*Camera, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrap(err, "Can not open device")
	}

	if _, ok := cam.GetSupportedFormats()[pixelFormatMJPEG]; !ok {
		cam.Close()
		return nil, errors.Wrapf(ErrNoMJPEG, "device %s", device)
	}

	w, h := closestFrameSize(cam.GetSupportedFrameSizes(pixelFormatMJPEG), width, height)
	format, gotW, gotH, err := cam.SetImageFormat(pixelFormatMJPEG, w, h)
	if err != nil {
		cam.Close()
		return nil, errors.Wrap(err, "Can not set image format")
	}
	if format != pixelFormatMJPEG {
		cam.Close()
		return nil, errors.Wrapf(ErrNoMJPEG, "device %s negotiated format %x", device, format)
	}

	return &Camera{
		device: device,
		cam:    cam,
		width:  gotW,
		height: gotH,
		done:   make(chan struct{}),
	}, nil
}

func (c *Camera) Device() string { return c.device }

func (c *Camera) Size() (uint32, uint32) { return c.width, c.height }

// Stream delivers frames to fn until ctx is cancelled, fn fails or the camera is closed.
// Only one Stream may run at a time.
func (c *Camera) Stream(ctx context.Context, fn FrameFunc) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.streaming.CompareAndSwap(false, true) {
		return ErrStreaming
	}
	defer close(c.done)

	if err := c.cam.StartStreaming(); err != nil {
		return errors.Wrap(err, "Can not start streaming")
	}
	defer c.cam.StopStreaming()

	for {
		if ctx.Err() != nil || c.closed.Load() {
			return nil
		}

		err := c.cam.WaitForFrame(waitTimeoutSeconds)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return errors.Wrap(err, "Frame wait failed")
		}

		frame, err := c.cam.ReadFrame()
		if err != nil {
			return errors.Wrap(err, "Read frame failed")
		}
		if len(frame) == 0 {
			continue
		}

		// ReadFrame hands out the driver's mmap buffer.
		buf := make([]byte, len(frame))
		copy(buf, frame)

		if err := fn(buf); err != nil {
			return errors.Wrap(err, "Frame handler failed")
		}
	}
}

// Close stops a running Stream, waits for it to exit and releases the device.
// Safe to call more than once.
func (c *Camera) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.streaming.Load() {
			<-c.done
		}
		if err := c.cam.Close(); err != nil {
			c.closeErr = errors.Wrap(err, "Can not close device")
		}
	})
	return c.closeErr
}

type frameSize struct {
	w, h uint32
}

// closestFrameSize picks the supported discrete size with the smallest area difference.
// Stepwise ranges contribute their clamped request.
func closestFrameSize(sizes []webcam.FrameSize, width, height uint32) (uint32, uint32) {
	if len(sizes) == 0 {
		return width, height
	}

	candidates := make([]frameSize, 0, len(sizes))
	for _, s := range sizes {
		if s.StepWidth == 0 && s.StepHeight == 0 {
			candidates = append(candidates, frameSize{s.MaxWidth, s.MaxHeight})
			continue
		}
		candidates = append(candidates, frameSize{
			clampStep(width, s.MinWidth, s.MaxWidth, s.StepWidth),
			clampStep(height, s.MinHeight, s.MaxHeight, s.StepHeight),
		})
	}

	target := int64(width) * int64(height)
	sort.SliceStable(candidates, func(i, j int) bool {
		return absDiff(int64(candidates[i].w)*int64(candidates[i].h), target) <
			absDiff(int64(candidates[j].w)*int64(candidates[j].h), target)
	})
	return candidates[0].w, candidates[0].h
}

func clampStep(v, lo, hi, step uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	if step > 1 {
		v = lo + (v-lo)/step*step
	}
	return v
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
