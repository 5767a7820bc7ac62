package tryonService

import (
	"TryOnService/internal/api/tryon"
	"TryOnService/internal/entity"
	contextPkg "TryOnService/pkg/context"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

func (s *tryOnService) Profile(ctx context.Context, productID string) (*entity.TryOnProfile, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.repo == nil {
		return nil, tryon.ErrProfileUnavailable
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, fmt.Errorf("%w: %v", tryon.ErrProfileUnavailable, err)
	}

	profile, err := repo.Profiles.GetProfileByProductID(ctx, productID)
	if err != nil {
		if errors.Is(err, tryon.ErrProfileNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", tryon.ErrProfileUnavailable, err)
	}

	return &profile, nil
}

func (s *tryOnService) ListProfiles(ctx context.Context, page, limit int) ([]entity.TryOnProfile, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if s.repo == nil {
		return nil, tryon.ErrProfileUnavailable
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create repository client")
		return nil, fmt.Errorf("%w: %v", tryon.ErrProfileUnavailable, err)
	}

	profiles, err := repo.Profiles.ListProfiles(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tryon.ErrProfileUnavailable, err)
	}
	return profiles, nil
}
