package tryonRepository

import (
	"TryOnService/internal/api/tryon"
	"TryOnService/internal/entity"
	contextPkg "TryOnService/pkg/context"
	"context"
	"database/sql"
	"errors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ProfileDB struct {
	ID           sql.NullString  `db:"id"`
	Name         sql.NullString  `db:"name"`
	ModelURL     sql.NullString  `db:"tryon_model_url"`
	DefaultScale sql.NullFloat64 `db:"tryon_default_scale"`
}

func (p ProfileDB) toEntity() entity.TryOnProfile {
	profile := entity.TryOnProfile{
		ProductID:    p.ID.String,
		ProductName:  p.Name.String,
		ModelURL:     p.ModelURL.String,
		DefaultScale: 1,
	}
	if p.DefaultScale.Valid && p.DefaultScale.Float64 > 0 {
		profile.DefaultScale = p.DefaultScale.Float64
	}
	return profile
}

func (r *profilesRepository) GetProfileByProductID(ctx context.Context, productID string) (entity.TryOnProfile, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var row ProfileDB

	argsKV := map[string]interface{}{
		"id": productID,
	}

	query, args, err := sqlx.Named(queryGetProfileByProductID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetProfileByProductID named query preparation err")
		return entity.TryOnProfile{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"product_id": productID,
			}).Warn("Try-on profile not found")
			return entity.TryOnProfile{}, tryon.ErrProfileNotFound
		}

		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when getting try-on profile")
		return entity.TryOnProfile{}, err
	}

	return row.toEntity(), nil
}

func (r *profilesRepository) ListProfiles(ctx context.Context, limit, offset int) ([]entity.TryOnProfile, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var rows []ProfileDB

	argsKV := map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	}

	query, args, err := sqlx.Named(queryListProfiles, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListProfiles named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(ctx, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing try-on profiles")
		return nil, err
	}

	profiles := make([]entity.TryOnProfile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, row.toEntity())
	}
	return profiles, nil
}
