// Package kvstore provides the namespaced string key/value store backing
// sessions, goals and meal history. Values are opaque strings; each key is
// read and written atomically, and no cross-key transactions exist.
package kvstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key is not present in the store
var ErrNotFound = errors.New("key not found")

// Store defines the interface for key/value storage operations
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
