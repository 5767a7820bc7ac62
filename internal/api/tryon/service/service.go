package tryonService

import (
	"TryOnService/internal/api/tryon"
	tryonRepository "TryOnService/internal/api/tryon/repository"
	"TryOnService/internal/entity"
	"TryOnService/pkg/assetsource"
	"TryOnService/pkg/model3d"
	"TryOnService/pkg/overlay"
	"TryOnService/pkg/redis"
	"TryOnService/pkg/s3"
	"TryOnService/pkg/utils"
	websocketPkg "TryOnService/pkg/websocket"
	"context"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

type ITryOnService interface {
	OpenSession(ctx context.Context, req tryon.OpenSessionRequest, opts ...SessionOption) (ISession, error)
	Estimate(ctx context.Context, req tryon.EstimateRequest) (*tryon.EstimateResponse, error)
	Presets() tryon.PresetsResponse

	LoadAsset(ctx context.Context, modelURL string) (*entity.NormalizedModelAsset, error)
	UploadAsset(ctx context.Context, file *multipart.FileHeader) (*entity.NormalizedModelAsset, error)

	Profile(ctx context.Context, productID string) (*entity.TryOnProfile, error)
	ListProfiles(ctx context.Context, page, limit int) ([]entity.TryOnProfile, error)
}

// DetectorDialer opens the per-session connection to the landmark service.
type DetectorDialer func(ctx context.Context, url string, opts websocketPkg.Options) (websocketPkg.ILandmarkDetector, error)

type Config struct {
	Params     overlay.Params
	MissPolicy overlay.MissPolicy
	Normalize  model3d.Options

	QueueSize     int
	DetectTimeout time.Duration
	FrameMaxWidth int
	FrameQuality  int
	FaceMeshURL   string

	AssetTimeout   time.Duration
	AssetCacheSize int
	AssetCacheTTL  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Params:         overlay.DefaultParams(),
		Normalize:      model3d.DefaultOptions(),
		QueueSize:      4,
		DetectTimeout:  2 * time.Second,
		FrameMaxWidth:  640,
		FrameQuality:   80,
		FaceMeshURL:    websocketPkg.FaceMeshURL(),
		AssetTimeout:   20 * time.Second,
		AssetCacheSize: 128,
		AssetCacheTTL:  24 * time.Hour,
	}
}

type tryOnService struct {
	log       *logrus.Logger
	repo      tryonRepository.Repository
	redis     redis.IRedis
	s3Client  s3.ItfS3
	fetcher   assetsource.IFetcher
	utils     utils.IUtils
	dial      DetectorDialer
	cfg       Config
	estimator *overlay.Estimator

	assets *expirable.LRU[string, entity.NormalizedModelAsset]
	loads  singleflight.Group
}

// NewTryOnService wires the session, asset and profile operations. repo, redis
// and s3Client may be nil when the backing service is not configured.
func NewTryOnService(
	log *logrus.Logger,
	repo tryonRepository.Repository,
	redis redis.IRedis,
	s3Client s3.ItfS3,
	fetcher assetsource.IFetcher,
	utils utils.IUtils,
	dial DetectorDialer,
	cfg Config,
) (ITryOnService, error) {
	estimator, err := overlay.NewEstimator(cfg.Params)
	if err != nil {
		return nil, err
	}
	if err := cfg.Normalize.Validate(); err != nil {
		return nil, fmt.Errorf("invalid normalization options: %w", err)
	}
	if cfg.MissPolicy.HideAfter < 0 {
		return nil, fmt.Errorf("hide-after misses must not be negative, got %d", cfg.MissPolicy.HideAfter)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.AssetCacheSize <= 0 {
		cfg.AssetCacheSize = 1
	}
	if cfg.AssetTimeout <= 0 {
		cfg.AssetTimeout = 20 * time.Second
	}
	if cfg.DetectTimeout <= 0 {
		cfg.DetectTimeout = 2 * time.Second
	}
	if dial == nil {
		dial = websocketPkg.Dial
	}

	return &tryOnService{
		log:       log,
		repo:      repo,
		redis:     redis,
		s3Client:  s3Client,
		fetcher:   fetcher,
		utils:     utils,
		dial:      dial,
		cfg:       cfg,
		estimator: estimator,
		assets:    expirable.NewLRU[string, entity.NormalizedModelAsset](cfg.AssetCacheSize, nil, cfg.AssetCacheTTL),
	}, nil
}
