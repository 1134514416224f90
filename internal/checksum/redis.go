package checksum

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps checksums as plain string keys without TTL.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore stores keys as <prefix>checksum:<id>.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + "checksum:" + id
}

// Get returns the cached checksum for id.
func (s *RedisStore) Get(ctx context.Context, id string) (string, bool, error) {
	sum, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get checksum %s: %w", id, err)
	}
	return sum, true, nil
}

// Put overwrites the checksum for id.
func (s *RedisStore) Put(ctx context.Context, id, sum string) error {
	if err := s.client.Set(ctx, s.key(id), sum, 0).Err(); err != nil {
		return fmt.Errorf("set checksum %s: %w", id, err)
	}
	return nil
}
