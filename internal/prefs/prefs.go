// Package prefs persists small per-browser preferences such as the export
// confirmation opt-out.
package prefs

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// Keys used by the application.
const (
	// KeySkipExportConfirm is the single global flag that suppresses the
	// export confirmation dialog for a browser.
	KeySkipExportConfirm = "skip_export_confirm"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("preference not found")

// Store reads and writes preferences keyed by browser id and key.
type Store interface {
	Get(ctx context.Context, browserID, key string) (string, error)
	Set(ctx context.Context, browserID, key, value string) error
	Delete(ctx context.Context, browserID, key string) error
}

// Bool reads a boolean preference. Missing or malformed values read as def.
func Bool(ctx context.Context, s Store, browserID, key string, def bool) (bool, error) {
	v, err := s.Get(ctx, browserID, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, nil
	}
	return b, nil
}

// SetBool writes a boolean preference.
func SetBool(ctx context.Context, s Store, browserID, key string, v bool) error {
	return s.Set(ctx, browserID, key, strconv.FormatBool(v))
}

type memKey struct {
	browserID string
	key       string
}

// MemoryStore keeps preferences in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[memKey]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[memKey]string)}
}

func (m *MemoryStore) Get(_ context.Context, browserID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[memKey{browserID, key}]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(_ context.Context, browserID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[memKey{browserID, key}] = value
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, browserID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, memKey{browserID, key})
	return nil
}
