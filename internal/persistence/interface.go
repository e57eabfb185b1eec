package persistence

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired
var ErrNotFound = errors.New("key not found")

// Engine is the document storage backend for users, students, tenant
// feature flags, revoked tokens and the badger audit sink.
type Engine interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// SetWithTTL stores a value that disappears after ttl
	SetWithTTL(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	// List returns the keys starting with prefix in ascending order
	List(prefix string) ([]string, error)

	// BatchSet and BatchDelete apply all items atomically
	BatchSet(items map[string][]byte) error
	BatchDelete(keys []string) error

	Close() error
}

// Config holds persistence configuration
type Config struct {
	Type       string // "memory", "badger"
	DataDir    string
	SyncWrites bool
}
