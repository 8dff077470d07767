package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-returns/internal/models"
)

// StatsCacheService caches the status-count and statistics aggregates,
// which back dashboard widgets and are hit far more often than they
// change.
type StatsCacheService struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// CachedStatusCounts is the cached per-status breakdown.
type CachedStatusCounts struct {
	Counts   map[models.ReturnStatus]int64 `json:"counts"`
	Total    int64                         `json:"total"`
	CachedAt time.Time                     `json:"cached_at"`
}

// NewStatsCacheService creates a new stats cache service
func NewStatsCacheService(redisClient *redis.Client, ttl time.Duration, logger *zap.Logger) *StatsCacheService {
	if ttl == 0 {
		ttl = 5 * time.Minute // Default TTL
	}
	return &StatsCacheService{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *StatsCacheService) statusCountsKey() string {
	return "returns:status_counts"
}

func (s *StatsCacheService) statsKey(startDate, endDate string) string {
	return fmt.Sprintf("returns:stats:%s:%s", startDate, endDate)
}

// GetStatusCounts retrieves cached status counts
func (s *StatsCacheService) GetStatusCounts(ctx context.Context) (*CachedStatusCounts, error) {
	if s.redis == nil {
		return nil, nil // No cache available
	}

	data, err := s.redis.Get(ctx, s.statusCountsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		s.logger.Warn("failed to get status counts from cache", zap.Error(err))
		return nil, nil
	}

	var cached CachedStatusCounts
	if err := json.Unmarshal(data, &cached); err != nil {
		s.logger.Warn("failed to unmarshal cached status counts", zap.Error(err))
		return nil, nil
	}
	return &cached, nil
}

// SetStatusCounts stores status counts in cache
func (s *StatsCacheService) SetStatusCounts(ctx context.Context, counts map[models.ReturnStatus]int64, total int64) error {
	if s.redis == nil {
		return nil // No cache available
	}

	cached := CachedStatusCounts{Counts: counts, Total: total, CachedAt: time.Now()}
	data, err := json.Marshal(cached)
	if err != nil {
		s.logger.Warn("failed to marshal status counts for cache", zap.Error(err))
		return err
	}

	if err := s.redis.Set(ctx, s.statusCountsKey(), data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to set status counts in cache", zap.Error(err))
		return err
	}
	return nil
}

// GetStats retrieves a cached statistics payload for a date range.
func (s *StatsCacheService) GetStats(ctx context.Context, startDate, endDate string, out interface{}) (bool, error) {
	if s.redis == nil {
		return false, nil
	}

	data, err := s.redis.Get(ctx, s.statsKey(startDate, endDate)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		s.logger.Warn("failed to get stats from cache", zap.Error(err))
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("failed to unmarshal cached stats", zap.Error(err))
		return false, nil
	}
	return true, nil
}

// SetStats stores a statistics payload for a date range.
func (s *StatsCacheService) SetStats(ctx context.Context, startDate, endDate string, payload interface{}) error {
	if s.redis == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.statsKey(startDate, endDate), data, s.ttl).Err(); err != nil {
		s.logger.Warn("failed to set stats in cache", zap.Error(err))
		return err
	}
	return nil
}

// Invalidate drops all cached aggregates. Called after every lifecycle
// transition so dashboards never lag by more than one request.
func (s *StatsCacheService) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, s.statusCountsKey()).Err(); err != nil {
		s.logger.Warn("failed to invalidate status counts cache", zap.Error(err))
	}

	iter := s.redis.Scan(ctx, 0, "returns:stats:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("failed to invalidate stats cache key",
				zap.String("key", iter.Val()), zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("failed to scan stats cache keys", zap.Error(err))
	}
}
