package kv

import (
	"context"
	"errors"
)

// ErrKeyExists is returned by PutIfAbsent when the key is already present.
var ErrKeyExists = errors.New("kv: key already exists")

// Store is the persistence contract shared by the checkpoint store and the
// task record store. Backends must guarantee per-key atomicity: a
// PutIfAbsent observed by one caller must be observed by all others.
type Store interface {
	// Get returns the value for key. The second return value is false when
	// the key does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put writes value under key, overwriting any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// PutIfAbsent writes value under key only if the key does not exist yet.
	// Returns ErrKeyExists otherwise.
	PutIfAbsent(ctx context.Context, key string, value []byte) error
}
