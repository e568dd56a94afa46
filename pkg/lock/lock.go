package lock

import (
	"context"
	"errors"
	"time"
)

// ErrHeld is returned when another run of the same session already holds the
// lock. The engine maps it to a conflict error for the caller.
var ErrHeld = errors.New("lock: session lock already held")

// Locker serializes pipeline execution per session id. Exactly one run (or
// resume) may hold the lock for a session at a time; the TTL bounds how long
// a crashed holder can block the session.
type Locker interface {
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (release func(), err error)
}
