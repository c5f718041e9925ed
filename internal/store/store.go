// Package store provides the persisted text collections that back the
// account registry, the credential store and the session pointer.
//
// Every collection is a flat key-value map of strings. Callers serialize
// their own values; backends never interpret them. Reads always go to the
// backend, so two processes sharing a backend see each other's writes with
// last-writer-wins semantics.
package store

import (
	"context"
	"errors"
)

// Collection names used by the core.
const (
	Registry    = "registry"
	Credentials = "credentials"
	Session     = "session"
)

// ErrNotFound is returned by Get when a key is absent.
var ErrNotFound = errors.New("key not found")

// Collection is a named key-value map of text values.
type Collection interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	// PutIfAbsent stores value only when key is absent and reports whether
	// it did.
	PutIfAbsent(ctx context.Context, key, value string) (bool, error)
	Delete(ctx context.Context, key string) error
	All(ctx context.Context) (map[string]string, error)
}

// Backend hands out collections that share one underlying storage.
type Backend interface {
	Name() string
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close() error
}
