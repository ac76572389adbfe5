// Package objectstore uploads public objects (product images) to an
// S3-compatible bucket.
package objectstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store writes an object and returns its public URL.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// PublicURL composes the public address of key. baseURL wins when set,
// then a custom endpoint, then the AWS virtual-hosted form.
func PublicURL(baseURL, endpointURL, region, bucket, key string) string {
	key = strings.TrimLeft(key, "/")
	switch {
	case baseURL != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(baseURL, "/"), bucket, key)
	case endpointURL != "":
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(endpointURL, "/"), bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
	}
}

// Object is a stored object held by MemoryStore.
type Object struct {
	Body        []byte
	ContentType string
}

// MemoryStore keeps objects in memory. Used when no bucket is configured
// and in tests.
type MemoryStore struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string]Object
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{BaseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]Object)}
}

func (m *MemoryStore) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = Object{Body: append([]byte(nil), body...), ContentType: contentType}
	return m.BaseURL + "/" + key, nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	return o, ok
}

// Keys lists stored keys in no particular order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
