package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type referenceRepo interface {
	ListCounties(ctx context.Context) ([]models.County, error)
	ListSubCounties(ctx context.Context, countyID string) ([]models.SubCounty, error)
	ListWards(ctx context.Context, subCountyID string) ([]models.Ward, error)
	ListInstitutions(ctx context.Context, countyID string) ([]models.Institution, error)
}

// ReferenceService serves the static location and institution lookups with
// a Redis cache-aside layer. The tables change rarely; a cache miss or a
// Redis outage degrades to a plain database read.
type ReferenceService struct {
	reference referenceRepo
	redis     *redis.Client
	ttl       time.Duration
	logger    *zap.Logger
}

// NewReferenceService constructs ReferenceService. The Redis client may be
// nil, in which case caching is skipped entirely.
func NewReferenceService(reference referenceRepo, client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReferenceService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceService{reference: reference, redis: client, ttl: ttl, logger: logger}
}

// cached runs load on a miss and stores the JSON-encoded result under key.
func cached[T any](ctx context.Context, s *ReferenceService, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, key).Bytes()
		if err == nil {
			var values []T
			if err := json.Unmarshal(raw, &values); err == nil {
				return values, nil
			}
			s.logger.Warn("corrupt cache entry dropped", zap.String("key", key))
			_ = s.redis.Del(ctx, key).Err()
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	values, err := load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reference data")
	}
	if values == nil {
		values = []T{}
	}

	if s.redis != nil {
		if raw, err := json.Marshal(values); err == nil {
			if err := s.redis.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return values, nil
}

// Counties lists all counties.
func (s *ReferenceService) Counties(ctx context.Context) ([]models.County, error) {
	return cached(ctx, s, "reference:counties", s.reference.ListCounties)
}

// SubCounties lists the sub-counties of one county.
func (s *ReferenceService) SubCounties(ctx context.Context, countyID string) ([]models.SubCounty, error) {
	return cached(ctx, s, "reference:sub_counties:"+countyID, func(ctx context.Context) ([]models.SubCounty, error) {
		return s.reference.ListSubCounties(ctx, countyID)
	})
}

// Wards lists the wards of one sub-county.
func (s *ReferenceService) Wards(ctx context.Context, subCountyID string) ([]models.Ward, error) {
	return cached(ctx, s, "reference:wards:"+subCountyID, func(ctx context.Context) ([]models.Ward, error) {
		return s.reference.ListWards(ctx, subCountyID)
	})
}

// Institutions lists institutions, optionally scoped to a county.
func (s *ReferenceService) Institutions(ctx context.Context, countyID string) ([]models.Institution, error) {
	return cached(ctx, s, "reference:institutions:"+countyID, func(ctx context.Context) ([]models.Institution, error) {
		return s.reference.ListInstitutions(ctx, countyID)
	})
}
