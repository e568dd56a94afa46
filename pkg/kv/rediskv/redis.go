package rediskv

import (
	"context"
	"errors"
	"fmt"

	"ai-dispatch-be/pkg/kv"

	"github.com/redis/go-redis/v9"
)

// Store persists entries in Redis. SetNX gives us the per-key atomicity the
// checkpoint and task record stores require.
type Store struct {
	client *redis.Client
	prefix string
}

var _ kv.Store = &Store{}

// New wraps an existing Redis client. All keys are namespaced under prefix
// so multiple stores can share one database.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// NewFromURL connects using a redis:// URL, the same format REDIS_URL uses.
func NewFromURL(url, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return New(redis.NewClient(opts), prefix), nil
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	ok, err := s.client.SetNX(ctx, s.key(key), value, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return kv.ErrKeyExists
	}
	return nil
}
