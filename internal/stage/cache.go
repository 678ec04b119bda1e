package stage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Source loads the stages of a pipeline.
type Source interface {
	ListByPipeline(ctx context.Context, pipelineID string) ([]Stage, error)
}

// CachedSource serves catalogs from a redis snapshot, falling back to the underlying
// source on miss. A nil client disables caching. Cache failures never fail a read.
type CachedSource struct {
	source Source
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedSource(source Source, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSource{source: source, client: client, ttl: ttl, logger: logger}
}

func cacheKey(pipelineID string) string {
	return "caseflow:stages:" + pipelineID
}

func (c *CachedSource) Catalog(ctx context.Context, pipelineID string) (Catalog, error) {
	if c.client != nil {
		b, err := c.client.Get(ctx, cacheKey(pipelineID)).Bytes()
		switch {
		case err == nil:
			var stages []Stage
			if uerr := json.Unmarshal(b, &stages); uerr == nil {
				return NewCatalog(pipelineID, stages)
			}
			c.logger.Warn("discarding corrupt stage cache entry", zap.String("pipeline_id", pipelineID))
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("stage cache read failed", zap.String("pipeline_id", pipelineID), zap.Error(err))
		}
	}

	stages, err := c.source.ListByPipeline(ctx, pipelineID)
	if err != nil {
		return Catalog{}, err
	}
	cat, err := NewCatalog(pipelineID, stages)
	if err != nil {
		return Catalog{}, err
	}

	if c.client != nil {
		b, _ := json.Marshal(cat.Stages())
		if err := c.client.Set(ctx, cacheKey(pipelineID), b, c.ttl).Err(); err != nil {
			c.logger.Warn("stage cache write failed", zap.String("pipeline_id", pipelineID), zap.Error(err))
		}
	}
	return cat, nil
}

func (c *CachedSource) Invalidate(ctx context.Context, pipelineID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(pipelineID)).Err()
}
