// Package cache drops derived API cache entries after a table changes.
package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Invalidator removes cached views derived from a table.
type Invalidator interface {
	Invalidate(ctx context.Context, table string) error
}

// Noop is used when no cache is configured.
type Noop struct{}

func (Noop) Invalidate(context.Context, string) error { return nil }

const scanCount = 100

// RedisInvalidator deletes every key under <prefix><table>:.
type RedisInvalidator struct {
	client redis.Cmdable
	prefix string
}

func NewRedisInvalidator(client redis.Cmdable, prefix string) *RedisInvalidator {
	return &RedisInvalidator{client: client, prefix: prefix}
}

// Pattern returns the key pattern matched for table.
func (r *RedisInvalidator) Pattern(table string) string {
	return r.prefix + table + ":*"
}

// Invalidate scans incrementally so large keyspaces are not blocked by KEYS.
func (r *RedisInvalidator) Invalidate(ctx context.Context, table string) error {
	pattern := r.Pattern(table)
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete %d keys for %s: %w", len(keys), table, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
