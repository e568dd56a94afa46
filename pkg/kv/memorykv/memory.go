package memorykv

import (
	"context"
	"sync"

	"ai-dispatch-be/pkg/kv"

	"github.com/patrickmn/go-cache"
)

// Store keeps entries in an in-process go-cache instance. Used by unit tests
// and local development; entries never expire so a suspended session survives
// as long as the process does.
type Store struct {
	cache *cache.Cache
	mu    sync.Mutex
}

var _ kv.Store = &Store{}

func New() *Store {
	return &Store{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if x, found := s.cache.Get(key); found {
		// Copy out so a caller mutating the result cannot corrupt the
		// stored entry. Put copies on the way in for the same reason.
		return append([]byte(nil), x.([]byte)...), true, nil
	}
	return nil, false, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.cache.Set(key, append([]byte(nil), value...), cache.NoExpiration)
	return nil
}

func (s *Store) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	// cache.Add is not atomic with respect to Set, so guard the whole
	// check-then-write with the store mutex.
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.cache.Add(key, append([]byte(nil), value...), cache.NoExpiration); err != nil {
		return kv.ErrKeyExists
	}
	return nil
}
