package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/gridfinity-server/internal/domain"
)

const (
	fieldData        = "data"
	fieldContentType = "ct"
)

// RedisStore shares entries between server replicas. Each entry is a hash
// holding the bytes and content type, optionally expiring after TTL.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store using client. ttl <= 0 keeps entries until
// Redis evicts them.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "gridfinity:artifact:", ttl: ttl}
}

func (s *RedisStore) key(k domain.CacheKey) string { return s.prefix + string(k) }

func (s *RedisStore) Get(ctx context.Context, key domain.CacheKey) (Entry, bool, error) {
	vals, err := s.client.HMGet(ctx, s.key(key), fieldData, fieldContentType).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis hmget: %w", err)
	}
	data, ok := vals[0].(string)
	if !ok {
		return Entry{}, false, nil
	}
	ct, _ := vals[1].(string)
	return Entry{Data: []byte(data), ContentType: ct}, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key domain.CacheKey, e Entry) error {
	k := s.key(key)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, k, fieldData, e.Data, fieldContentType, e.ContentType)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}
