// Package store provides the persisted key-value and append-only store
// shared by the blueprint cache, the agent registry and the audit
// trails.
//
// Writes are transactional per key. This replaces the polling
// file-lock discipline of earlier revisions: concurrent writers contend
// on the database transaction, not on a busy-wait loop, and there is no
// read-modify-write window.
package store

import (
	"context"
	"errors"
)

// ErrNotFound indicates the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a persisted key-value store with append-only logs.
type Store interface {
	// Read returns the value for key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write sets the value for key, replacing any previous value.
	Write(ctx context.Context, key string, value []byte) error

	// WriteIfAbsent sets the value only when the key has none, and
	// reports whether this call performed the write. First write wins.
	WriteIfAbsent(ctx context.Context, key string, value []byte) (bool, error)

	// Keys returns all keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Append adds an entry to the named append-only log.
	Append(ctx context.Context, key string, entry []byte) error

	// Entries returns all entries of the named log in append order.
	Entries(ctx context.Context, key string) ([][]byte, error)

	// Close releases the store.
	Close() error
}
