package tryonService

import (
	"TryOnService/internal/api/tryon"
	"TryOnService/internal/entity"
	"TryOnService/pkg/assetsource"
	contextPkg "TryOnService/pkg/context"
	"TryOnService/pkg/model3d"
	"TryOnService/pkg/redis"
	"TryOnService/pkg/utils"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadAsset returns the normalized calibration for modelURL. Results are
// memoized in process and in Redis; concurrent loads of one URL share a single
// fetch. Failures are not cached, so a later call retries.
func (s *tryOnService) LoadAsset(ctx context.Context, modelURL string) (*entity.NormalizedModelAsset, error) {
	modelURL = strings.TrimSpace(modelURL)
	if modelURL == "" {
		return nil, tryon.ErrMissingModelURL
	}

	if asset, ok := s.assets.Get(modelURL); ok {
		return &asset, nil
	}

	requestID := contextPkg.GetRequestID(ctx)
	ch := s.loads.DoChan(modelURL, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.AssetTimeout)
		defer cancel()
		return s.loadAsset(loadCtx, requestID, modelURL)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		asset := res.Val.(entity.NormalizedModelAsset)
		return &asset, nil
	}
}

func (s *tryOnService) loadAsset(ctx context.Context, requestID, modelURL string) (entity.NormalizedModelAsset, error) {
	if asset, ok := s.assets.Get(modelURL); ok {
		return asset, nil
	}

	if asset, ok := s.cachedAsset(ctx, requestID, modelURL); ok {
		s.assets.Add(modelURL, asset)
		return asset, nil
	}

	data, err := s.fetcher.Fetch(ctx, modelURL)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"model_url":  modelURL,
			"error":      err.Error(),
		}).Warn("Failed to fetch model asset")

		switch {
		case errors.Is(err, assetsource.ErrUnsupportedScheme):
			return entity.NormalizedModelAsset{}, fmt.Errorf("%w: %v", tryon.ErrInvalidModelURL, err)
		case errors.Is(err, assetsource.ErrTooLarge):
			return entity.NormalizedModelAsset{}, tryon.ErrAssetTooLarge
		default:
			return entity.NormalizedModelAsset{}, fmt.Errorf("%w: %v", tryon.ErrAssetLoad, err)
		}
	}

	asset, err := s.normalizeModel(modelURL, bytes.NewReader(data))
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"model_url":  modelURL,
			"error":      err.Error(),
		}).Warn("Failed to normalize model asset")
		return entity.NormalizedModelAsset{}, fmt.Errorf("%w: %v", tryon.ErrAssetLoad, err)
	}

	s.assets.Add(modelURL, asset)
	s.storeAsset(ctx, requestID, asset)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"model_url":  modelURL,
		"scale":      asset.Scale,
	}).Info("Model asset normalized")

	return asset, nil
}

// UploadAsset validates and normalizes an uploaded model before storing it.
func (s *tryOnService) UploadAsset(ctx context.Context, file *multipart.FileHeader) (*entity.NormalizedModelAsset, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if err := s.utils.ValidateModelFile(file); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Invalid model file")

		switch {
		case errors.Is(err, utils.ErrFileTooLarge):
			return nil, tryon.ErrFileTooLarge
		case errors.Is(err, utils.ErrNoFile), errors.Is(err, utils.ErrInvalidFileType):
			return nil, tryon.ErrInvalidFileType
		default:
			return nil, fmt.Errorf("%w: %v", tryon.ErrInvalidFileType, err)
		}
	}

	if s.s3Client == nil {
		return nil, tryon.ErrStorageUnavailable
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tryon.ErrInvalidFileType, err)
	}
	defer src.Close()

	asset, err := s.normalizeModel("", src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tryon.ErrAssetLoad, err)
	}

	location, err := s.s3Client.UploadModel(ctx, file)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"file_name":  file.Filename,
			"error":      err.Error(),
		}).Error("Failed to upload model")
		return nil, tryon.ErrFailedToUpload
	}

	asset.ModelURL = location
	s.assets.Add(location, asset)
	s.storeAsset(ctx, requestID, asset)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"model_url":  location,
	}).Info("Model uploaded")

	return &asset, nil
}

func (s *tryOnService) normalizeModel(modelURL string, r io.Reader) (entity.NormalizedModelAsset, error) {
	doc, err := model3d.LoadGLB(r)
	if err != nil {
		return entity.NormalizedModelAsset{}, err
	}

	box, err := model3d.SceneBounds(doc)
	if err != nil {
		return entity.NormalizedModelAsset{}, err
	}

	cal, err := model3d.Normalize(box, s.cfg.Normalize)
	if err != nil {
		return entity.NormalizedModelAsset{}, err
	}

	return entity.NormalizedModelAsset{
		ModelURL:      modelURL,
		Offset:        toVec3(cal.Offset),
		Scale:         cal.Scale,
		SourceMin:     toVec3(cal.SourceBox.Min),
		SourceMax:     toVec3(cal.SourceBox.Max),
		NormalizedMin: toVec3(cal.NormalizedBox.Min),
		NormalizedMax: toVec3(cal.NormalizedBox.Max),
		TargetWidth:   s.cfg.Normalize.TargetWidth,
		ComputedAt:    time.Now().UTC(),
	}, nil
}

func (s *tryOnService) cachedAsset(ctx context.Context, requestID, modelURL string) (entity.NormalizedModelAsset, bool) {
	if s.redis == nil {
		return entity.NormalizedModelAsset{}, false
	}

	payload, err := s.redis.GetAsset(ctx, assetKey(modelURL))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Asset cache lookup failed")
		}
		return entity.NormalizedModelAsset{}, false
	}

	var asset entity.NormalizedModelAsset
	if err := json.Unmarshal(payload, &asset); err != nil || asset.ModelURL != modelURL || !(asset.Scale > 0) {
		return entity.NormalizedModelAsset{}, false
	}
	return asset, true
}

func (s *tryOnService) storeAsset(ctx context.Context, requestID string, asset entity.NormalizedModelAsset) {
	if s.redis == nil {
		return
	}

	payload, err := json.Marshal(asset)
	if err != nil {
		return
	}
	if err := s.redis.SetAsset(ctx, assetKey(asset.ModelURL), payload, s.cfg.AssetCacheTTL); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Failed to cache model asset")
	}
}

const downloadURLExpiry = 15 * time.Minute

// downloadURL presigns s3:// models so the browser can fetch them. Other URLs
// are already fetchable and yield "".
func (s *tryOnService) downloadURL(ctx context.Context, requestID, modelURL string) string {
	u, err := url.Parse(modelURL)
	if err != nil || !strings.EqualFold(u.Scheme, "s3") || s.s3Client == nil {
		return ""
	}

	signed, err := s.s3Client.PresignUrl(ctx, u.Host, strings.TrimPrefix(u.Path, "/"), downloadURLExpiry)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"model_url":  modelURL,
			"error":      err.Error(),
		}).Warn("Failed to presign model URL")
		return ""
	}
	return signed
}

func assetKey(modelURL string) string {
	sum := sha256.Sum256([]byte(modelURL))
	return hex.EncodeToString(sum[:])
}

func toVec3(v r3.Vector) entity.Vec3 {
	return entity.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}
