package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/tendant/simple-vfs/pkg/vfs"
)

// Backend is an in-memory implementation of the vfs.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string][]byte),
	}
}

// Upload stores the payload, replacing any previous one
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[objectKey] = data
	return nil
}

// Download returns the stored payload
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[objectKey]
	if !exists {
		return nil, vfs.ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the payload
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return vfs.ErrNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// Keys returns the stored object keys
func (b *Backend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	return keys
}
