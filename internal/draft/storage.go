// Package draft persists work-in-progress documents keyed by compose
// context, debouncing writes and stripping content that only exists in
// this process.
package draft

import (
	"context"
	"errors"
	"sync"
)

// ErrNoDraft is returned when no usable draft exists for a key.
var ErrNoDraft = errors.New("no draft")

// Storage is the persistence backend drafts are written to.
type Storage interface {
	Put(ctx context.Context, key string, payload []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStorage keeps drafts in process memory, for tests and
// single-node dev setups.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (m *MemoryStorage) Put(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	m.data[key] = buf
	return nil
}

func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.data[key]
	if !ok {
		return nil, ErrNoDraft
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return buf, nil
}

func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
