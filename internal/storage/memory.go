package storage

import (
	"bytes"
	"context"
	"io"
	"sync"
)

type object struct {
	data        []byte
	contentType string
}

// Memory keeps objects in process. Used by tests and local runs without a bucket.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

func NewMemory(baseURL string) *Memory {
	return &Memory{
		objects: make(map[string]object),
		baseURL: publicURL(baseURL, "memory://media", ""),
	}
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.objects[key] = object{data: buf.Bytes(), contentType: contentType}
	m.mu.Unlock()

	return m.baseURL + key, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[key]; !ok {
		return ErrNotFound
	}
	delete(m.objects, key)
	return nil
}

// Get returns a stored object's bytes and content type.
func (m *Memory) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	return obj.data, obj.contentType, ok
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) Close() error {
	return nil
}
