package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bakery/storefront/internal/domain"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	TagMenu       = "menu"
	TagCategories = "categories"
)

// CatalogCache holds the latest catalog snapshot and drops it by tag
type CatalogCache interface {
	// Get reports false without error on a miss
	Get(ctx context.Context) (*domain.Catalog, bool, error)
	Set(ctx context.Context, catalog *domain.Catalog) error
	Invalidate(ctx context.Context, tags ...string) error
}

type redisCatalogCache struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

func NewRedisCatalogCache(redisClient *redis.Client, keyPrefix string, ttl time.Duration) CatalogCache {
	return &redisCatalogCache{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		ttl:         ttl,
	}
}

func (c *redisCatalogCache) snapshotKey() string {
	return c.keyPrefix + "catalog:snapshot"
}

func (c *redisCatalogCache) tagKey(tag string) string {
	return c.keyPrefix + "tag:" + tag
}

func (c *redisCatalogCache) Get(ctx context.Context) (*domain.Catalog, bool, error) {
	data, err := c.redisClient.Get(ctx, c.snapshotKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get catalog snapshot: %w", err)
	}

	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		log.Warnf("⚠️ Dropping unreadable catalog snapshot: %v", err)
		return nil, false, nil
	}

	return &catalog, true, nil
}

func (c *redisCatalogCache) Set(ctx context.Context, catalog *domain.Catalog) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("failed to encode catalog snapshot: %w", err)
	}

	key := c.snapshotKey()
	pipe := c.redisClient.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	for _, tag := range []string{TagMenu, TagCategories} {
		pipe.SAdd(ctx, c.tagKey(tag), key)
		pipe.Expire(ctx, c.tagKey(tag), c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store catalog snapshot: %w", err)
	}

	log.Debugf("Cached catalog snapshot with %d items for %v", len(catalog.Items), c.ttl)
	return nil
}

// Invalidate deletes every key indexed under the given tags along with the
// tag sets themselves
func (c *redisCatalogCache) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := c.tagKey(tag)

		keys, err := c.redisClient.SMembers(ctx, tagKey).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("failed to read tag %s: %w", tag, err)
		}

		if err := c.redisClient.Del(ctx, append(keys, tagKey)...).Err(); err != nil {
			return fmt.Errorf("failed to invalidate tag %s: %w", tag, err)
		}

		log.Infof("🧹 Invalidated tag %s (%d keys)", tag, len(keys))
	}
	return nil
}
