package historyquiz

import (
	"context"
	"fmt"
	"sync"
)

// Storage is a flat key-value store for small JSON payloads.
// Get returns ErrNotFound when the key holds no value; Delete of a missing
// key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStorage keeps values in process memory
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}

// Len returns the number of stored keys
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

type namespacedStorage struct {
	prefix string
	inner  Storage
}

// Namespace scopes every key of s under prefix, so several clients can
// share one backing store without seeing each other's entries.
func Namespace(s Storage, prefix string) Storage {
	return &namespacedStorage{prefix: prefix + ":", inner: s}
}

func (n *namespacedStorage) Get(ctx context.Context, key string) ([]byte, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespacedStorage) Set(ctx context.Context, key string, value []byte) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespacedStorage) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// OpenStorage opens the backend selected by cfg.StoreDriver. The returned
// close function releases it.
func OpenStorage(ctx context.Context, cfg Config) (Storage, func() error, error) {
	switch cfg.StoreDriver {
	case "memory":
		return NewMemoryStorage(), func() error { return nil }, nil
	case "redis":
		r, err := OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	case DriverSQLite, DriverPostgres, "":
		db, err := OpenDB(ctx, cfg.StoreDriver, cfg.StoreDSN)
		if err != nil {
			return nil, nil, err
		}
		return db, db.CloseDB, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
}
