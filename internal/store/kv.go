package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
)

var ErrMiss = errors.New("cache miss")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type RedisKV struct {
	c *redis.Client
}

func NewRedisKV(c *redis.Client) *RedisKV { return &RedisKV{c: c} }

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.c.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrMiss
		}
		return "", err
	}
	return val, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

// MemoryKV 进程内 KV（SESSION_STORE=memory 或测试）。ttl <= 0 表示不过期。
type MemoryKV struct {
	c *cache.Cache
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{c: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrMiss
	}
	s, _ := v.(string)
	return s, nil
}

func (m *MemoryKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *MemoryKV) Delete(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
