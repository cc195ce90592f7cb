package fundraising

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "franchise-ledger/internal/common/errors"
	"franchise-ledger/internal/models"
)

// Cache stores derived snapshots fenced by a per-franchise generation that
// every invalidation advances. Get returns the generation current at read
// time; a snapshot Set under an older generation is never served.
// A miss is (nil, generation, nil).
type Cache interface {
	Get(ctx context.Context, franchiseID string) (*models.FundraisingSnapshot, int64, error)
	Set(ctx context.Context, snapshot *models.FundraisingSnapshot, generation int64) error
	Invalidate(ctx context.Context, franchiseID string) error
}

func CacheKey(franchiseID string) string {
	return "fundraising:" + franchiseID
}

// GenerationKey holds the invalidation counter. It has no TTL so a counter
// reset can never revive an old entry.
func GenerationKey(franchiseID string) string {
	return "fundraising:" + franchiseID + ":generation"
}

type cacheEntry struct {
	Generation int64                       `json:"generation"`
	Snapshot   *models.FundraisingSnapshot `json:"snapshot"`
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, franchiseID string) (*models.FundraisingSnapshot, int64, error) {
	vals, err := c.client.MGet(ctx, CacheKey(franchiseID), GenerationKey(franchiseID)).Result()
	if err != nil {
		return nil, 0, apperrors.NewExternalServiceError(apperrors.ErrCodeCacheFailed, "redis", err)
	}

	var generation int64
	if raw, ok := vals[1].(string); ok {
		if generation, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, apperrors.NewExternalServiceError(apperrors.ErrCodeCacheFailed, "redis", err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, generation, nil
	}
	var entry cacheEntry
	// unreadable entries are treated as a miss and overwritten
	if err := json.Unmarshal([]byte(raw), &entry); err != nil || entry.Snapshot == nil {
		return nil, generation, nil
	}
	if entry.Generation != generation {
		return nil, generation, nil
	}
	return entry.Snapshot, generation, nil
}

func (c *RedisCache) Set(ctx context.Context, snapshot *models.FundraisingSnapshot, generation int64) error {
	data, err := json.Marshal(cacheEntry{Generation: generation, Snapshot: snapshot})
	if err != nil {
		return apperrors.NewExternalServiceError(apperrors.ErrCodeCacheFailed, "redis", err)
	}
	if err := c.client.Set(ctx, CacheKey(snapshot.FranchiseID), data, c.ttl).Err(); err != nil {
		return apperrors.NewExternalServiceError(apperrors.ErrCodeCacheFailed, "redis", err)
	}
	return nil
}

// Invalidate advances the generation before dropping the entry, so a Set
// racing with it lands under a generation Get no longer accepts.
func (c *RedisCache) Invalidate(ctx context.Context, franchiseID string) error {
	if err := c.client.Incr(ctx, GenerationKey(franchiseID)).Err(); err != nil {
		return apperrors.NewExternalServiceError(apperrors.ErrCodeCacheFailed, "redis", err)
	}
	if err := c.client.Del(ctx, CacheKey(franchiseID)).Err(); err != nil {
		return apperrors.NewExternalServiceError(apperrors.ErrCodeCacheFailed, "redis", err)
	}
	return nil
}
