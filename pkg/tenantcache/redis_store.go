package tenantcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore implements Store on go-redis. Enumeration uses SCAN so large
// key spaces never block the server.
type RedisStore struct {
	db            redis.UniversalClient
	scanBatchSize int64
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithScanBatchSize sets the COUNT hint passed to SCAN.
func WithScanBatchSize(n int64) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.scanBatchSize = n
		}
	}
}

func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{db: client, scanBatchSize: 1000}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("tenantcache: redis get: %w", err)
	}
	return val, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.db.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("tenantcache: redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.db.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("tenantcache: redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.db.IncrBy(ctx, key, delta).Result()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, ErrNotNumber
		}
		return 0, fmt.Errorf("tenantcache: redis incrby: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.db.Scan(ctx, 0, pattern, s.scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("tenantcache: redis scan: %w", err)
	}
	return keys, nil
}

// DeletePattern scans and deletes in batches of the scan size.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) (int, error) {
	var (
		deleted int
		batch   = make([]string, 0, s.scanBatchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.db.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("tenantcache: redis del: %w", err)
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	iter := s.db.Scan(ctx, 0, pattern, s.scanBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= s.scanBatchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("tenantcache: redis scan: %w", err)
	}
	return deleted, flush()
}
