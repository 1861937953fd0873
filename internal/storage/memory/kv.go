// Package memory provides an in-memory KV for development/testing.
package memory

import (
	"context"
	"sync"
)

// KV is a concurrency-safe in-memory key-value store.
type KV struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewKV constructs a KV.
func NewKV() *KV {
	return &KV{docs: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (s *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.docs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Put stores a copy of the value.
func (s *KV) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), value...)
	return nil
}
