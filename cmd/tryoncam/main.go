// Command tryoncam runs a single try-on session against a local webcam. Frames
// go to the remote face-mesh service and the resulting overlay transforms are
// logged, which is handy when tuning the TRYON_* placement settings.
package main

import (
	"TryOnService/internal/api/tryon"
	tryonService "TryOnService/internal/api/tryon/service"
	"TryOnService/internal/config"
	"TryOnService/pkg/assetsource"
	"TryOnService/pkg/camera"
	"TryOnService/pkg/log"
	"TryOnService/pkg/overlay"
	"TryOnService/pkg/utils"
	websocketPkg "TryOnService/pkg/websocket"
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	device := flag.String("device", "/dev/video0", "V4L2 capture device")
	width := flag.Uint("width", 640, "requested frame width")
	height := flag.Uint("height", 480, "requested frame height")
	model := flag.String("model", "", "glasses model, a local path or an http(s)/s3 URL")
	scale := flag.Float64("scale", 1, "product default scale")
	size := flag.String("size", "medium", "size preset: small, medium or large")
	detector := flag.String("detector", "", "face-mesh websocket URL, defaults to AI_FACE_MESH_URL")
	flag.Parse()

	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env file loaded: %v", err)
	}

	if *model == "" {
		logger.Fatal("-model is required")
	}
	preset, err := overlay.ParsePreset(*size)
	if err != nil {
		logger.Fatal(err)
	}

	settings, err := config.LoadTryOnSettings()
	if err != nil {
		logger.Fatalf("Invalid try-on configuration: %v", err)
	}
	if *detector != "" {
		settings.Service.FaceMeshURL = *detector
	}
	settings.Source.AllowFiles = true

	svc, err := tryonService.NewTryOnService(
		logger,
		nil,
		nil,
		nil,
		assetsource.New(nil, settings.Source),
		utils.New(settings.UploadMaxBytes),
		websocketPkg.Dial,
		settings.Service,
	)
	if err != nil {
		logger.Fatal(err)
	}

	cam, err := camera.Open(*device, uint32(*width), uint32(*height))
	if err != nil {
		logger.Fatalf("Failed to open camera: %v", err)
	}
	w, h := cam.Size()
	logger.WithFields(logrus.Fields{
		"device": cam.Device(),
		"width":  w,
		"height": h,
	}).Info("Camera opened")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := svc.OpenSession(ctx, tryon.OpenSessionRequest{
		ModelURL:     *model,
		DefaultScale: *scale,
		SizeMode:     tryon.SizeModePreset,
		Detection:    tryon.DetectionServer,
	}, tryonService.WithResource("camera", cam))
	if err != nil {
		logger.Fatalf("Failed to open session: %v", err)
	}
	defer sess.Close()

	if err := sess.SetPreset(preset); err != nil {
		logger.Fatal(err)
	}

	entry := log.WithSession(logger, sess.ID())
	entry.WithFields(logrus.Fields{
		"model":  *model,
		"scale":  sess.Asset().Scale,
		"offset": sess.Asset().Offset,
	}).Info("Session ready")

	go func() {
		for {
			select {
			case <-sess.Done():
				return
			case u := <-sess.Updates():
				entry.WithFields(logrus.Fields{
					"seq":      u.Sequence,
					"visible":  u.Visible,
					"detected": u.Detected,
					"misses":   u.Misses,
					"x":        u.Transform.Position.X,
					"y":        u.Transform.Position.Y,
					"scale":    u.Transform.Scale,
					"rotation": u.Transform.RotationZ,
				}).Debug("Overlay updated")
			}
		}
	}()

	err = cam.Stream(ctx, func(frame []byte) error {
		if err := sess.SubmitVideoFrame(frame); err != nil && errors.Is(err, tryon.ErrSessionClosed) {
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, tryon.ErrSessionClosed) {
		entry.Errorf("Capture stopped: %v", err)
	}

	stats := sess.Stats()
	entry.WithFields(logrus.Fields{
		"received":  stats.FramesReceived,
		"processed": stats.FramesProcessed,
		"dropped":   stats.FramesDropped,
		"missed":    stats.FramesMissed,
		"errors":    stats.DetectorErrors,
	}).Info("Session closed")
}
