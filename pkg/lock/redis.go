package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker implements Locker with a SetNX lease so locks survive across
// processes. The release function only deletes the key when the stored token
// still matches, so an expired lease taken over by another run is not
// clobbered.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

var _ Locker = &RedisLocker{}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (func(), error) {
	key := l.prefix + ":lock:" + sessionID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	return func() {
		// Best effort: the lease expires on its own if this fails.
		releaseScript.Run(context.Background(), l.client, []string{key}, token)
	}, nil
}
