package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/repository"
	pkgcache "TradePulse/pkg/cache"
)

const (
	windowKeyPrefix = "corr:window:"
	scoresKey       = "scores:latest"
	decisionChannel = "decisions"
	priorityChannel = "signals:priority"

	windowTTL = 30 * time.Minute
	scoreTTL  = time.Hour
)

// RedisSampleCache implements SampleCache on Redis: correlation windows and
// latest scores as TTL'd keys, decisions and priority signals via pub/sub.
type RedisSampleCache struct {
	cache *pkgcache.RedisCache
}

// NewRedisSampleCache creates the cache/queue gateway.
func NewRedisSampleCache(cache *pkgcache.RedisCache) repository.SampleCache {
	return &RedisSampleCache{cache: cache}
}

func (c *RedisSampleCache) MirrorWindow(ctx context.Context, pairKey string, samples []float64) error {
	return c.cache.Set(ctx, windowKeyPrefix+pairKey, samples, windowTTL)
}

func (c *RedisSampleCache) LoadWindow(ctx context.Context, pairKey string) ([]float64, error) {
	var samples []float64
	if err := c.cache.Get(ctx, windowKeyPrefix+pairKey, &samples); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return samples, nil
}

func (c *RedisSampleCache) CacheScore(ctx context.Context, s *models.CompositeScore) error {
	var latest map[string]float64
	if err := c.cache.Get(ctx, scoresKey, &latest); err != nil && !errors.Is(err, pkgcache.ErrCacheMiss) {
		return err
	}
	if latest == nil {
		latest = make(map[string]float64, 1)
	}
	latest[s.AssetID] = s.Score
	return c.cache.Set(ctx, scoresKey, latest, scoreTTL)
}

func (c *RedisSampleCache) LatestScores(ctx context.Context) (map[string]float64, error) {
	var latest map[string]float64
	if err := c.cache.Get(ctx, scoresKey, &latest); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return map[string]float64{}, nil
		}
		return nil, err
	}
	return latest, nil
}

func (c *RedisSampleCache) PublishDecision(ctx context.Context, d *models.Decision) error {
	b, err := json.Marshal(map[string]interface{}{
		"id":       d.ID,
		"asset_id": d.AssetID,
		"action":   string(d.Action),
		"score":    d.Score,
		"ts":       d.Timestamp.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return c.cache.Client().Publish(ctx, decisionChannel, b).Err()
}

func (c *RedisSampleCache) PublishPrioritySignal(ctx context.Context, s *models.Signal) error {
	b, err := json.Marshal(map[string]interface{}{
		"source":   s.Source,
		"asset_id": s.AssetID,
		"kind":     string(s.Kind),
		"value":    s.Value,
		"ts":       s.Timestamp.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return c.cache.Client().Publish(ctx, priorityChannel, b).Err()
}

func (c *RedisSampleCache) Close() error {
	return c.cache.Close()
}
