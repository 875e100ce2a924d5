package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "filegate:session:"

// RedisStore keeps sessions in redis, relying on native key TTLs for
// eviction. Survives bot restarts, so a user can finish an upload across a
// deploy.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore verifies connectivity and returns the store.
func NewRedisStore(ctx context.Context, client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(userID int64) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, userID)
}

// Get returns the user's live session or ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := r.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		// A corrupt session is unrecoverable; drop it and start over.
		_ = r.client.Del(ctx, redisKey(userID)).Err()
		return nil, ErrNotFound
	}
	return &s, nil
}

// Put stores the session and resets its TTL.
func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis marshal: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(s.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the user's session if present.
func (r *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
