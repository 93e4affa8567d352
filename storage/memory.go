package storage

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
)

type memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory returns an in-memory Storage, useful for tests.
func NewMemory() Storage {
	return &memory{
		values: make(map[string][]byte),
	}
}

func (m *memory) Has(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok, nil
}

func (m *memory) Put(ctx context.Context, key string, content []byte) error {
	val := make([]byte, len(content))
	copy(val, content)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = val
	return nil
}

func (m *memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	val := make([]byte, len(content))
	copy(val, content)
	return val, nil
}

func (m *memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return ErrNotFound
	}
	delete(m.values, key)
	return nil
}

func (m *memory) Rename(ctx context.Context, oldKey, newKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.values[oldKey]
	if !ok {
		return ErrNotFound
	}
	m.values[newKey] = content
	delete(m.values, oldKey)
	return nil
}

func (m *memory) List(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	dir := strings.TrimSuffix(prefix, "/")
	if dir == "" {
		dir = "."
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for key := range m.values {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if path.Dir(key) != dir {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memory) Dirs(ctx context.Context, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	for key := range m.values {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		i := strings.IndexByte(rest, '/')
		if i < 0 {
			continue
		}
		seen[rest[:i]] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memory) RemoveAll(ctx context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.values {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			delete(m.values, key)
		}
	}
	return nil
}
