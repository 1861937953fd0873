// Package memory stores archived artifacts in-memory for development.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archive stores artifacts in-memory and returns pseudo URIs.
type Archive struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates a new in-memory archive.
func New() *Archive {
	return &Archive{data: make(map[string][]byte)}
}

// Put persists the content and returns a memory:// URI.
func (a *Archive) Put(_ context.Context, path string, _ string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data[path] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", path), nil
}

// Get returns a stored artifact for inspection in tests.
func (a *Archive) Get(path string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}
