package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// MemoryStore keeps encoded documents in process memory. Documents are held
// encoded so callers never share slices with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	docs   map[string][]byte
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Collections(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(m.docs))
	for n := range m.docs {
		names = append(names, n)
	}
	sort.Strings(names)
	return visible(names), nil
}

func (m *MemoryStore) Load(ctx context.Context, collection string) ([]model.View, error) {
	if err := CheckName(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	data, ok := m.docs[collection]
	if !ok {
		return nil, fmt.Errorf("%q: %w", collection, ErrNotFound)
	}
	return Decode(data)
}

func (m *MemoryStore) Save(ctx context.Context, collection string, views []model.View) (WriteResult, error) {
	if err := CheckName(collection); err != nil {
		return WriteResult{}, err
	}
	data, err := Encode(views)
	if err != nil {
		return WriteResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return WriteResult{}, ErrClosed
	}
	m.docs[collection] = data
	return WriteResult{OK: 1, N: len(views)}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection string) error {
	if err := CheckName(collection); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.docs[collection]; !ok {
		return fmt.Errorf("%q: %w", collection, ErrNotFound)
	}
	delete(m.docs, collection)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
