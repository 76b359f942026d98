package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gitlab.com/timkado/api/daisi-helpdesk-service/internal/domain"
)

// keyPrefix namespaces every persisted cache record so Purge can enumerate
// them without touching unrelated keys in the same Redis database.
const keyPrefix = "daisi:hd:cache:"

// purgeScanCount is the batch size hint for SCAN during Purge.
const purgeScanCount = 256

// StorageBackendAdapter implements the domain.StorageBackend interface using
// Redis as the durable tier of the two-tier cache.
//
// Records are stored as JSON `{"value": ..., "expiry": <epoch millis>}`. The
// Redis-side TTL is set to the record's remaining lifetime as well, so
// records abandoned by the volatile tier still age out on their own.
type StorageBackendAdapter struct {
	redisClient *redis.Client
	logger      domain.Logger
}

// NewStorageBackendAdapter creates a new instance of StorageBackendAdapter.
func NewStorageBackendAdapter(redisClient *redis.Client, logger domain.Logger) *StorageBackendAdapter {
	if redisClient == nil {
		// Panicking here because this is a critical setup error.
		panic("redisClient cannot be nil in NewStorageBackendAdapter")
	}
	if logger == nil {
		panic("logger cannot be nil in NewStorageBackendAdapter")
	}
	return &StorageBackendAdapter{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Load retrieves the record for key. A missing key or an unparsable record is
// reported as (nil, nil); only transport-level Redis failures return an error.
func (a *StorageBackendAdapter) Load(ctx context.Context, key string) (*domain.StorageRecord, error) {
	val, err := a.redisClient.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		a.logger.Debug(ctx, "Persistent cache tier miss", "key", key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET for cache record key '%s' failed: %w", key, err)
	}

	var record domain.StorageRecord
	if err = json.Unmarshal([]byte(val), &record); err != nil {
		// A corrupt record must never block the caller; drop it and miss.
		a.logger.Warn(ctx, "Discarding unparsable persisted cache record", "key", key, "error", err.Error())
		if delErr := a.redisClient.Del(ctx, keyPrefix+key).Err(); delErr != nil {
			a.logger.Warn(ctx, "Failed to delete unparsable cache record", "key", key, "error", delErr.Error())
		}
		return nil, nil
	}

	a.logger.Debug(ctx, "Persistent cache tier hit", "key", key, "expiry", record.Expiry)
	return &record, nil
}

// Store writes the record for key, bounding its physical lifetime in Redis by
// the record's own expiry.
func (a *StorageBackendAdapter) Store(ctx context.Context, key string, record *domain.StorageRecord) error {
	payloadBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal cache record for key '%s': %w", key, err)
	}

	ttl := time.Until(time.UnixMilli(record.Expiry))
	if ttl <= 0 {
		// Already expired; storing it would only create an immediate miss.
		return nil
	}

	if err = a.redisClient.Set(ctx, keyPrefix+key, string(payloadBytes), ttl).Err(); err != nil {
		return fmt.Errorf("redis SET for cache record key '%s' failed: %w", key, err)
	}

	a.logger.Debug(ctx, "Persisted cache record", "key", key, "ttl", ttl.String())
	return nil
}

// Delete removes the records for the given keys; missing keys are not an error.
func (a *StorageBackendAdapter) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = keyPrefix + k
	}
	if err := a.redisClient.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis DEL for %d cache record key(s) failed: %w", len(keys), err)
	}
	return nil
}

// Purge removes every record under the backend's prefix using SCAN so large
// databases are walked incrementally.
func (a *StorageBackendAdapter) Purge(ctx context.Context) error {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := a.redisClient.Scan(ctx, cursor, keyPrefix+"*", purgeScanCount).Result()
		if err != nil {
			return fmt.Errorf("redis SCAN during cache purge failed: %w", err)
		}
		if len(keys) > 0 {
			if err := a.redisClient.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis DEL during cache purge failed: %w", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}
	a.logger.Info(ctx, "Purged persistent cache tier", "deleted", deleted)
	return nil
}
