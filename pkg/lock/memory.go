package lock

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryLocker implements Locker with an in-process go-cache instance.
// Suitable for single-node deployments and tests.
type MemoryLocker struct {
	cache *cache.Cache
}

var _ Locker = &MemoryLocker{}

func NewMemoryLocker() *MemoryLocker {
	// Purge interval keeps abandoned leases from accumulating.
	return &MemoryLocker{cache: cache.New(cache.NoExpiration, 1*time.Minute)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (func(), error) {
	if err := l.cache.Add(sessionID, struct{}{}, ttl); err != nil {
		return nil, ErrHeld
	}
	return func() {
		l.cache.Delete(sessionID)
	}, nil
}
