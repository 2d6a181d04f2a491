package client

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisNamespace prefixes every key written by RedisStorage.
const DefaultRedisNamespace = "folio:auth"

// RedisStorage shares tokens between processes through redis. Keys are
// prefixed with a namespace, usually the origin of the auth server.
type RedisStorage struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
}

type RedisOption func(*RedisStorage)

// WithRedisTTL expires stored values after ttl. Zero keeps them until deleted.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStorage) {
		r.ttl = ttl
	}
}

func NewRedisStorage(client redis.UniversalClient, namespace string, opts ...RedisOption) *RedisStorage {
	if namespace == "" {
		namespace = DefaultRedisNamespace
	}
	r := &RedisStorage{client: client, namespace: namespace}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRedisStorageFromURL connects using a redis:// URL.
func NewRedisStorageFromURL(url, namespace string, opts ...RedisOption) (*RedisStorage, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisStorage(redis.NewClient(options), namespace, opts...), nil
}

func (r *RedisStorage) key(key string) string {
	return r.namespace + ":" + key
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, r.ttl).Err()
}

func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = r.key(key)
	}
	return r.client.Del(ctx, namespaced...).Err()
}

// Close releases the underlying client.
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
