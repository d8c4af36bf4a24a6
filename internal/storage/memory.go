package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory PersistentStore. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]string
	writeErr error
	failKeys map[string]bool
	writes   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:     make(map[string]string),
		failKeys: make(map[string]bool),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure(key); err != nil {
		return err
	}
	m.data[key] = value
	m.writes++
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failure(key); err != nil {
		return err
	}
	delete(m.data, key)
	return nil
}

// WriteBatch applies writes under one lock. If any key is set to fail,
// nothing is written.
func (m *MemoryStore) WriteBatch(ctx context.Context, writes []Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		if err := m.failure(w.Key); err != nil {
			op := "write"
			if w.Delete {
				op = "delete"
			}
			return &KeyError{Op: op, Key: w.Key, Err: err}
		}
	}
	for _, w := range writes {
		if w.Delete {
			delete(m.data, w.Key)
			continue
		}
		m.data[w.Key] = w.Value
		m.writes++
	}
	return nil
}

// FailWrites makes every subsequent Set and Delete return err. Passing nil
// restores normal behaviour. If keys are given, only writes to those keys
// fail.
func (m *MemoryStore) FailWrites(err error, keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.writeErr = err
	m.failKeys = make(map[string]bool, len(keys))
	for _, k := range keys {
		m.failKeys[k] = true
	}
}

func (m *MemoryStore) failure(key string) error {
	if m.writeErr == nil {
		return nil
	}
	if len(m.failKeys) == 0 || m.failKeys[key] {
		return m.writeErr
	}
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Writes counts successful key sets, batched or not.
func (m *MemoryStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}
