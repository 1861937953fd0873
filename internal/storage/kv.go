// Package storage defines the key-value persistence contract for state
// documents.
package storage

import "context"

// KV stores opaque JSON-encoded documents under string keys.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores the value, replacing any previous one.
	Put(ctx context.Context, key string, value []byte) error
}
