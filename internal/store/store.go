// Package store provides the durable key-value backend the licensing
// engine persists its state into. The engine only ever sees the Store
// interface; the file-backed implementation is what ships, the in-memory
// implementation exists for tests.
package store

import "errors"

// ErrKeyNotFound is returned by Get when no value exists for the key.
var ErrKeyNotFound = errors.New("store: key not found")

// Store is a persistent mapping from string keys to opaque byte values.
// Implementations must be durable across process restarts and safe for
// concurrent use.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set durably writes the value for key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes the value for key. Deleting an absent key is a no-op.
	Delete(key string) error

	// Keys returns all keys currently present.
	Keys() ([]string, error)
}
