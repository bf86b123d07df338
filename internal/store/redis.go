package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const lastCallbackTTL = 24 * time.Hour

// RedisStore keeps callback payloads in Redis with a TTL, for deployments
// where the receiver endpoint is shared across replicas.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func lastCallbackKey(requestID string) string {
	return fmt.Sprintf("callback:last:%s", requestID)
}

// Save records body as the most recent payload for requestID.
func (s *RedisStore) Save(ctx context.Context, requestID string, body []byte) error {
	return s.client.Set(ctx, lastCallbackKey(requestID), body, lastCallbackTTL).Err()
}

// Last returns the most recent payload for requestID, if any.
func (s *RedisStore) Last(ctx context.Context, requestID string) ([]byte, bool, error) {
	body, err := s.client.Get(ctx, lastCallbackKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}
