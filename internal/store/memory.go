package store

import (
	"context"
	"sync"
)

type memoryBackend struct {
	mu          sync.RWMutex
	collections map[string]map[string]string
}

// NewMemory builds a process-local backend for tests and throwaway runs.
func NewMemory() Backend {
	return &memoryBackend{collections: make(map[string]map[string]string)}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Collection(name string) Collection {
	return &memoryCollection{backend: b, name: name}
}

func (b *memoryBackend) Ping(context.Context) error { return nil }

func (b *memoryBackend) Close() error { return nil }

type memoryCollection struct {
	backend *memoryBackend
	name    string
}

func (c *memoryCollection) Get(_ context.Context, key string) (string, error) {
	c.backend.mu.RLock()
	defer c.backend.mu.RUnlock()
	value, ok := c.backend.collections[c.name][key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (c *memoryCollection) Put(_ context.Context, key, value string) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.entries()[key] = value
	return nil
}

func (c *memoryCollection) PutIfAbsent(_ context.Context, key, value string) (bool, error) {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	entries := c.entries()
	if _, exists := entries[key]; exists {
		return false, nil
	}
	entries[key] = value
	return true, nil
}

func (c *memoryCollection) Delete(_ context.Context, key string) error {
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	delete(c.backend.collections[c.name], key)
	return nil
}

func (c *memoryCollection) All(_ context.Context) (map[string]string, error) {
	c.backend.mu.RLock()
	defer c.backend.mu.RUnlock()
	out := make(map[string]string, len(c.backend.collections[c.name]))
	for k, v := range c.backend.collections[c.name] {
		out[k] = v
	}
	return out, nil
}

// entries must be called with the write lock held.
func (c *memoryCollection) entries() map[string]string {
	entries, ok := c.backend.collections[c.name]
	if !ok {
		entries = make(map[string]string)
		c.backend.collections[c.name] = entries
	}
	return entries
}
