package progress

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 10 * time.Minute

// CachedStore is a read-through Store decorator keeping hot records in
// Redis/Dragonfly. Writes go to the inner store first and then invalidate
// the cached copy; a cache failure is never allowed to fail the operation.
type CachedStore struct {
	inner  Store
	client *redis.Client
}

// NewCachedStore wraps a Store with a Redis cache.
func NewCachedStore(inner Store, client *redis.Client) *CachedStore {
	return &CachedStore{inner: inner, client: client}
}

func cacheKey(userID, moduleID string) string {
	return "progress:" + userID + ":" + moduleID
}

func (s *CachedStore) Load(ctx context.Context, userID, moduleID string) (*ProgressRecord, error) {
	key := cacheKey(userID, moduleID)

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		rec, decErr := DecodeRecord(userID, moduleID, raw)
		if decErr == nil {
			return rec, nil
		}
		slog.Warn("dropping undecodable cached record", "key", key, "error", decErr)
		s.invalidate(ctx, userID, moduleID)
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("progress cache read failed", "key", key, "error", err)
	}

	rec, err := s.inner.Load(ctx, userID, moduleID)
	if err != nil {
		return nil, err
	}

	if doc, encErr := EncodeRecord(rec); encErr == nil {
		if setErr := s.client.Set(ctx, key, doc, cacheTTL).Err(); setErr != nil {
			slog.Warn("progress cache write failed", "key", key, "error", setErr)
		}
	}
	return rec, nil
}

func (s *CachedStore) Save(ctx context.Context, userID, moduleID string, rec *ProgressRecord) error {
	if err := s.inner.Save(ctx, userID, moduleID, rec); err != nil {
		return err
	}
	s.invalidate(ctx, userID, moduleID)
	return nil
}

func (s *CachedStore) Update(ctx context.Context, userID, moduleID string, patch CompletionUpdate) error {
	if err := s.inner.Update(ctx, userID, moduleID, patch); err != nil {
		return err
	}
	s.invalidate(ctx, userID, moduleID)
	return nil
}

// LoadMany bypasses the cache: the all-modules query is an aggregate read
// and the inner store answers it in one round trip anyway.
func (s *CachedStore) LoadMany(ctx context.Context, userID string, moduleIDs []string) (map[string]*ProgressRecord, error) {
	return s.inner.LoadMany(ctx, userID, moduleIDs)
}

func (s *CachedStore) invalidate(ctx context.Context, userID, moduleID string) {
	if err := s.client.Del(ctx, cacheKey(userID, moduleID)).Err(); err != nil {
		slog.Warn("progress cache invalidation failed", "user_id", userID, "module_id", moduleID, "error", err)
	}
}
