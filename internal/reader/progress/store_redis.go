// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/yomira-reader/internal/platform/constants"
	"github.com/taibuivan/yomira-reader/internal/reader/readererr"
)

// # Guest Backend

/*
RedisBackend implements [Backend] for guest devices.

Key layout:
  - reader:progress:<device>:<comic> — JSON entry, expires with the TTL.
  - reader:progress:index:<device>   — sorted set of comic IDs scored by
    UpdatedAt (unix millis), used for recency ordering and cap eviction.

Expiry is native: each entry key carries the TTL, so stale positions vanish
without a sweep. Index members whose entry key has already expired are
pruned lazily on read. Writes evict the least-recently-updated comics once
the per-device cap is exceeded.
*/
type RedisBackend struct {
	client   *redis.Client
	ttl      time.Duration
	capacity int
}

// NewRedisBackend creates the Redis-backed guest store.
//
// # Parameters
//   - client: Connected Redis client.
//   - ttl: Retention window for guest positions.
//   - capacity: Maximum comics tracked per device.
func NewRedisBackend(client *redis.Client, ttl time.Duration, capacity int) *RedisBackend {
	if ttl <= 0 {
		ttl = constants.DefaultGuestProgressTTL
	}
	if capacity <= 0 {
		capacity = constants.DefaultGuestProgressCap
	}
	return &RedisBackend{client: client, ttl: ttl, capacity: capacity}
}

// entryKey builds the per-comic entry key.
func entryKey(owner string, comicID string) string {
	return fmt.Sprintf("%s%s:%s", constants.RedisPrefixProgress, owner, comicID)
}

// indexKey builds the per-device recency index key.
func indexKey(owner string) string {
	return fmt.Sprintf("%s%s", constants.RedisPrefixProgressIndex, owner)
}

/*
Save persists the entry and refreshes the recency index.

Description: Writes the JSON entry with the retention TTL, scores the comic
in the device index by UpdatedAt, then evicts the least-recently-updated
comics beyond the device cap.

Parameters:
  - context: context.Context
  - owner: string (device ID)
  - entry: *Entry

Returns:
  - error: Storage failures
*/
func (backend *RedisBackend) Save(context context.Context, owner string, entry *Entry) error {

	// 1. Serialize the entry
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis_progress_marshal_failed: %w", err)
	}

	// 2. Write entry and index atomically
	pipe := backend.client.TxPipeline()
	pipe.Set(context, entryKey(owner, entry.ComicID), data, backend.ttl)
	pipe.ZAdd(context, indexKey(owner), redis.Z{
		Score:  float64(entry.UpdatedAt.UnixMilli()),
		Member: entry.ComicID,
	})
	pipe.Expire(context, indexKey(owner), backend.ttl)
	if _, err := pipe.Exec(context); err != nil {
		return fmt.Errorf("redis_progress_save_failed: %w", err)
	}

	// 3. Enforce the per-device cap
	return backend.evictOverCap(context, owner)
}

// evictOverCap removes the least-recently-updated comics beyond the cap.
func (backend *RedisBackend) evictOverCap(context context.Context, owner string) error {
	count, err := backend.client.ZCard(context, indexKey(owner)).Result()
	if err != nil {
		return fmt.Errorf("redis_progress_index_card_failed: %w", err)
	}
	if count <= int64(backend.capacity) {
		return nil
	}

	// Lowest scores are the oldest positions
	surplus := count - int64(backend.capacity)
	victims, err := backend.client.ZRange(context, indexKey(owner), 0, surplus-1).Result()
	if err != nil {
		return fmt.Errorf("redis_progress_evict_range_failed: %w", err)
	}

	pipe := backend.client.TxPipeline()
	for _, comicID := range victims {
		pipe.Del(context, entryKey(owner, comicID))
		pipe.ZRem(context, indexKey(owner), comicID)
	}
	if _, err := pipe.Exec(context); err != nil {
		return fmt.Errorf("redis_progress_evict_failed: %w", err)
	}

	return nil
}

/*
Get retrieves the stored position for one comic.

Parameters:
  - context: context.Context
  - owner: string (device ID)
  - comicID: string

Returns:
  - *Entry: Stored position
  - error: readererr.NotFoundError if absent or expired
*/
func (backend *RedisBackend) Get(context context.Context, owner string, comicID string) (*Entry, error) {
	data, err := backend.client.Get(context, entryKey(owner, comicID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &readererr.NotFoundError{Resource: "Reading progress"}
		}
		return nil, fmt.Errorf("redis_progress_get_failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("redis_progress_unmarshal_failed: %w", err)
	}

	return &entry, nil
}

/*
Recent returns up to limit entries, most recently updated first.

Parameters:
  - context: context.Context
  - owner: string (device ID)
  - limit: int

Returns:
  - []*Entry: Ordered positions
  - error: Retrieval failures
*/
func (backend *RedisBackend) Recent(context context.Context, owner string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := backend.client.ZRevRange(context, indexKey(owner), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_progress_recent_failed: %w", err)
	}
	return backend.collect(context, owner, members)
}

/*
All returns every stored entry for the device, most recent first.

Parameters:
  - context: context.Context
  - owner: string (device ID)

Returns:
  - []*Entry: Ordered positions
  - error: Retrieval failures
*/
func (backend *RedisBackend) All(context context.Context, owner string) ([]*Entry, error) {
	members, err := backend.client.ZRevRange(context, indexKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis_progress_all_failed: %w", err)
	}
	return backend.collect(context, owner, members)
}

// collect hydrates entries for index members, lazily pruning members whose
// entry key has already expired.
func (backend *RedisBackend) collect(context context.Context, owner string, members []string) ([]*Entry, error) {
	entries := make([]*Entry, 0, len(members))

	for _, comicID := range members {
		entry, err := backend.Get(context, owner, comicID)
		if err != nil {
			var notFound *readererr.NotFoundError
			if errors.As(err, &notFound) {
				// Entry expired under the index: drop the dangling member
				_ = backend.client.ZRem(context, indexKey(owner), comicID).Err()
				continue
			}
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

/*
Clear removes the stored position for one comic.

Parameters:
  - context: context.Context
  - owner: string (device ID)
  - comicID: string

Returns:
  - error: Deletion failures
*/
func (backend *RedisBackend) Clear(context context.Context, owner string, comicID string) error {
	pipe := backend.client.TxPipeline()
	pipe.Del(context, entryKey(owner, comicID))
	pipe.ZRem(context, indexKey(owner), comicID)
	if _, err := pipe.Exec(context); err != nil {
		return fmt.Errorf("redis_progress_clear_failed: %w", err)
	}
	return nil
}

/*
ClearAll removes every stored position for the device.

Parameters:
  - context: context.Context
  - owner: string (device ID)

Returns:
  - error: Deletion failures
*/
func (backend *RedisBackend) ClearAll(context context.Context, owner string) error {
	members, err := backend.client.ZRange(context, indexKey(owner), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis_progress_clearall_range_failed: %w", err)
	}

	pipe := backend.client.TxPipeline()
	for _, comicID := range members {
		pipe.Del(context, entryKey(owner, comicID))
	}
	pipe.Del(context, indexKey(owner))
	if _, err := pipe.Exec(context); err != nil {
		return fmt.Errorf("redis_progress_clearall_failed: %w", err)
	}

	return nil
}
