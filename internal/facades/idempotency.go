package facades

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sbilibin2017/gw-settlement-ledger/internal/logger"
	"github.com/sbilibin2017/gw-settlement-ledger/internal/models"
)

// IdempotencyCacheRepository stores settlement outcomes by idempotency key in
// Redis so a replayed request returns the original result without re-applying
// the reserve decrement.
type IdempotencyCacheRepository struct {
	client *redis.Client
	exp    time.Duration
}

// NewIdempotencyCacheRepository creates a cache with the given TTL.
func NewIdempotencyCacheRepository(client *redis.Client, expiration time.Duration) *IdempotencyCacheRepository {
	return &IdempotencyCacheRepository{
		client: client,
		exp:    expiration,
	}
}

// Get returns the cached result for the key, or nil when absent.
func (r *IdempotencyCacheRepository) Get(ctx context.Context, key string) (*models.SettlementResult, error) {
	redisKey := fmt.Sprintf("settlement:idempotency:%s", key)

	val, err := r.client.Get(ctx, redisKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logger.Log.Errorw("idempotency cache get failed", "key", redisKey, "error", err)
		return nil, err
	}

	var result models.SettlementResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		logger.Log.Errorw("idempotency cache entry corrupt", "key", redisKey, "error", err)
		return nil, err
	}

	logger.Log.Infow("idempotency cache hit", "key", redisKey, "batch_id", result.BatchID)
	return &result, nil
}

// Set caches a settlement result under the key with the configured TTL.
func (r *IdempotencyCacheRepository) Set(ctx context.Context, key string, result models.SettlementResult) error {
	redisKey := fmt.Sprintf("settlement:idempotency:%s", key)

	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	err = r.client.Set(ctx, redisKey, data, r.exp).Err()
	logger.Log.Infow("idempotency cache set", "key", redisKey, "batch_id", result.BatchID, "error", err)
	return err
}

// MemoryIdempotencyCache is the in-process fallback used by tests and
// deployments without Redis.
type MemoryIdempotencyCache struct {
	mu      sync.RWMutex
	results map[string]models.SettlementResult
}

// NewMemoryIdempotencyCache creates an empty in-memory cache.
func NewMemoryIdempotencyCache() *MemoryIdempotencyCache {
	return &MemoryIdempotencyCache{results: make(map[string]models.SettlementResult)}
}

// Get returns the cached result for the key, or nil when absent.
func (c *MemoryIdempotencyCache) Get(ctx context.Context, key string) (*models.SettlementResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if result, ok := c.results[key]; ok {
		return &result, nil
	}
	return nil, nil
}

// Set caches a settlement result under the key.
func (c *MemoryIdempotencyCache) Set(ctx context.Context, key string, result models.SettlementResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[key] = result
	return nil
}
