package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps entries as plain string keys under a namespace
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects using a redis:// or rediss:// URL
func NewRedisStore(ctx context.Context, rawURL, namespace string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client, namespace), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "minidp"
	}
	return &RedisStore{client: client, namespace: namespace + ":"}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, s.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key from redis: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.namespace+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key from redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.namespace+prefix) + "*"
	iter := s.client.Scan(ctx, 0, match, 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	return keys, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
