// Package cache holds the Redis-backed taxonomy snapshot cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"keepsake/api/internal/store"

	"github.com/redis/go-redis/v9"
)

const versionKey = "taxonomy:version"

// SnapshotCache keeps the full tag list keyed by a monotonically increasing
// version counter. Writers bump the counter instead of rewriting the payload,
// so a reader holding a stale version simply misses and reloads from Postgres.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(redisURL string, ttl time.Duration) (*SnapshotCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewSnapshotCacheWithClient(client, ttl), nil
}

func NewSnapshotCacheWithClient(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func tagsKey(version int64) string {
	return fmt.Sprintf("taxonomy:tags:%d", version)
}

// Version returns the current taxonomy version. A cold cache reports version 1.
func (c *SnapshotCache) Version(ctx context.Context) (int64, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if err == redis.Nil {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read taxonomy version: %w", err)
	}
	return version, nil
}

// Get fetches the tag list stored for version. The second return reports a
// cache hit; a miss is not an error.
func (c *SnapshotCache) Get(ctx context.Context, version int64) ([]store.Tag, bool, error) {
	payload, err := c.client.Get(ctx, tagsKey(version)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read taxonomy snapshot: %w", err)
	}

	var tags []store.Tag
	if err := json.Unmarshal(payload, &tags); err != nil {
		return nil, false, fmt.Errorf("unmarshal taxonomy snapshot: %w", err)
	}
	return tags, true, nil
}

func (c *SnapshotCache) Put(ctx context.Context, version int64, tags []store.Tag) error {
	payload, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal taxonomy snapshot: %w", err)
	}
	if err := c.client.Set(ctx, tagsKey(version), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("store taxonomy snapshot: %w", err)
	}
	return nil
}

// Invalidate bumps the version counter and returns the new version. Stale
// payloads age out via TTL rather than explicit deletes.
func (c *SnapshotCache) Invalidate(ctx context.Context) (int64, error) {
	version, err := c.client.Incr(ctx, versionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("bump taxonomy version: %w", err)
	}
	return version, nil
}

func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
