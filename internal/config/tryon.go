package config

import (
	tryonHandler "TryOnService/internal/api/tryon/handler"
	tryonService "TryOnService/internal/api/tryon/service"
	"TryOnService/internal/middleware"
	"TryOnService/pkg/assetsource"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// TryOnSettings holds everything the try-on domain reads from the environment.
type TryOnSettings struct {
	Service        tryonService.Config
	Source         assetsource.Options
	Socket         tryonHandler.SocketOptions
	Limits         middleware.Options
	UploadMaxBytes int64
}

func DefaultTryOnSettings() TryOnSettings {
	return TryOnSettings{
		Service:        tryonService.DefaultConfig(),
		Source:         assetsource.Options{Timeout: 15 * time.Second, MaxBytes: 20 << 20},
		Socket:         tryonHandler.DefaultSocketOptions(),
		Limits:         middleware.DefaultOptions(),
		UploadMaxBytes: 20 << 20,
	}
}

type envReader struct {
	errs []string
}

func (r *envReader) float(key string, dst *float64) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not a number", key, v))
		return
	}
	*dst = f
}

func (r *envReader) int(key string, dst *int) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not an integer", key, v))
		return
	}
	*dst = n
}

func (r *envReader) int64(key string, dst *int64) {
	n := int(*dst)
	r.int(key, &n)
	*dst = int64(n)
}

func (r *envReader) duration(key string, dst *time.Duration) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s=%q is not a duration", key, v))
		return
	}
	*dst = d
}

func (r *envReader) limit(key string, dst *rate.Limit) {
	f := float64(*dst)
	r.float(key, &f)
	*dst = rate.Limit(f)
}

func (r *envReader) err() error {
	if len(r.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid try-on configuration: %s", strings.Join(r.errs, "; "))
}

// LoadTryOnSettings overlays TRYON_* and related variables on the defaults.
func LoadTryOnSettings() (TryOnSettings, error) {
	s := DefaultTryOnSettings()
	r := &envReader{}

	p := &s.Service.Params
	r.int("TRYON_LEFT_EYE_INDEX", &p.LeftEyeIndex)
	r.int("TRYON_RIGHT_EYE_INDEX", &p.RightEyeIndex)
	r.float("TRYON_MIN_EYE_DISTANCE", &p.MinEyeDist)
	r.float("TRYON_MAX_EYE_DISTANCE", &p.MaxEyeDist)
	r.float("TRYON_REFERENCE_EYE_DISTANCE", &p.ReferenceEyeDist)
	r.float("TRYON_SCALE_TUNING", &p.Tuning)
	r.float("TRYON_SCENE_WIDTH", &p.SceneWidth)
	r.float("TRYON_SCENE_HEIGHT", &p.SceneHeight)
	r.float("TRYON_VERTICAL_OFFSET", &p.VerticalOffset)
	r.float("TRYON_DEPTH", &p.Depth)
	r.float("TRYON_MIN_SCALE", &p.MinScale)
	r.float("TRYON_MAX_SCALE", &p.MaxScale)

	r.int("TRYON_HIDE_AFTER_MISSES", &s.Service.MissPolicy.HideAfter)
	r.float("TRYON_TARGET_WIDTH", &s.Service.Normalize.TargetWidth)
	r.float("TRYON_OPTICAL_FRACTION", &s.Service.Normalize.OpticalFraction)

	r.int("TRYON_QUEUE_SIZE", &s.Service.QueueSize)
	r.duration("TRYON_DETECT_TIMEOUT", &s.Service.DetectTimeout)
	r.int("TRYON_FRAME_MAX_WIDTH", &s.Service.FrameMaxWidth)
	r.int("TRYON_FRAME_QUALITY", &s.Service.FrameQuality)
	r.duration("TRYON_ASSET_TIMEOUT", &s.Service.AssetTimeout)
	r.int("TRYON_ASSET_CACHE_SIZE", &s.Service.AssetCacheSize)
	r.duration("TRYON_ASSET_CACHE_TTL", &s.Service.AssetCacheTTL)

	r.int64("TRYON_ASSET_MAX_BYTES", &s.Source.MaxBytes)
	r.duration("TRYON_ASSET_FETCH_TIMEOUT", &s.Source.Timeout)
	r.int64("TRYON_UPLOAD_MAX_BYTES", &s.UploadMaxBytes)

	r.duration("TRYON_WS_READ_TIMEOUT", &s.Socket.ReadTimeout)
	r.duration("TRYON_WS_WRITE_TIMEOUT", &s.Socket.WriteTimeout)
	r.duration("TRYON_WS_PING_INTERVAL", &s.Socket.PingInterval)
	r.int64("TRYON_WS_MAX_MESSAGE_BYTES", &s.Socket.MaxMessageSize)

	r.limit("RATE_LIMIT_RPS", &s.Limits.Rate)
	r.int("RATE_LIMIT_BURST", &s.Limits.Burst)
	r.limit("UPLOAD_RATE_LIMIT_RPS", &s.Limits.UploadRate)
	r.int("UPLOAD_RATE_LIMIT_BURST", &s.Limits.UploadBurst)

	if url := strings.TrimSpace(os.Getenv("AI_FACE_MESH_URL")); url != "" {
		s.Service.FaceMeshURL = url
	}

	if err := r.err(); err != nil {
		return TryOnSettings{}, err
	}
	if err := s.Service.Params.Validate(); err != nil {
		return TryOnSettings{}, err
	}
	if err := s.Service.Normalize.Validate(); err != nil {
		return TryOnSettings{}, fmt.Errorf("invalid try-on configuration: %w", err)
	}
	if s.Service.MissPolicy.HideAfter < 0 {
		return TryOnSettings{}, fmt.Errorf("invalid try-on configuration: TRYON_HIDE_AFTER_MISSES must not be negative")
	}

	return s, nil
}
