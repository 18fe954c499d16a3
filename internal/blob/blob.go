// ABOUTME: Blob store abstraction for snapshot sync documents
// ABOUTME: Named byte blobs with prefix listing; Charm Cloud backs the real store

package blob

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotExist is returned when a requested blob does not exist.
var ErrNotExist = errors.New("blob: does not exist")

// Store is a named-blob file store. Snapshot sync reads and writes whole
// documents; there are no partial updates.
type Store interface {
	// Upload stores data under name, replacing any existing blob.
	Upload(name string, data []byte) error
	// Download returns the blob stored under name, or ErrNotExist.
	Download(name string) ([]byte, error)
	// List returns the names of all blobs starting with prefix, sorted.
	List(prefix string) ([]string, error)
	// Delete removes the blob under name. Deleting a missing blob is not
	// an error.
	Delete(name string) error
}

// MemStore is an in-memory Store for tests and offline use.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (m *MemStore) Upload(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.blobs[name] = buf
	return nil
}

func (m *MemStore) Download(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, ErrNotExist
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (m *MemStore) List(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name := range m.blobs {
		if hasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, name)
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
