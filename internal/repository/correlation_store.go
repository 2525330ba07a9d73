package repository

import (
	"context"
	"errors"
	"fmt"

	"FxPulse/internal/domain/models"
	domrepo "FxPulse/internal/domain/repository"
	"FxPulse/pkg/cache"
)

// CorrelationKey holds the JSON map instrument → direction.
var CorrelationKey = cache.GenerateKey("correlations", "directions")

// CacheCorrelationStore keeps correlated-instrument directions in a cache.Service
// (Redis in production, memory otherwise).
type CacheCorrelationStore struct {
	cache cache.Service
}

func NewCacheCorrelationStore(c cache.Service) *CacheCorrelationStore {
	return &CacheCorrelationStore{cache: c}
}

// Directions returns an empty map when nothing has been published yet.
func (s *CacheCorrelationStore) Directions(ctx context.Context) (map[string]models.Direction, error) {
	dirs := make(map[string]models.Direction)
	if err := s.cache.Get(ctx, CorrelationKey, &dirs); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return map[string]models.Direction{}, nil
		}
		return nil, fmt.Errorf("read correlations: %w", err)
	}
	return dirs, nil
}

func (s *CacheCorrelationStore) SetDirections(ctx context.Context, dirs map[string]models.Direction) error {
	for k, d := range dirs {
		switch d {
		case models.DirectionLong, models.DirectionShort, models.DirectionNone:
		default:
			return fmt.Errorf("correlation %s: invalid direction %q", k, d)
		}
	}
	if err := s.cache.Set(ctx, CorrelationKey, dirs, 0); err != nil {
		return fmt.Errorf("write correlations: %w", err)
	}
	return nil
}

var _ domrepo.CorrelationStore = (*CacheCorrelationStore)(nil)
