package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// memoryProvider is an in-process Provider used in tests and local
// development without an object store.
type memoryProvider struct {
	mu      sync.Mutex
	objects map[string][]byte

	// signCounter makes every presigned link distinct, mirroring how real
	// signatures differ per signing time.
	signCounter int
}

// NewMemoryProvider returns an in-memory Provider.
func NewMemoryProvider() Provider {
	return &memoryProvider{
		objects: make(map[string][]byte),
	}
}

func (p *memoryProvider) Put(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[objectKey] = data
	return nil
}

func (p *memoryProvider) Exists(ctx context.Context, objectKey string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.objects[objectKey]
	return ok, nil
}

func (p *memoryProvider) PublicURL(objectKey string) string {
	return "mem://" + objectKey
}

func (p *memoryProvider) PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.objects[objectKey]; !ok {
		return "", fmt.Errorf("object %q not stored", objectKey)
	}

	p.signCounter++
	return fmt.Sprintf("mem://%s?sig=%d&ttl=%s", objectKey, p.signCounter, expiry), nil
}

func (p *memoryProvider) CheckBucket(ctx context.Context) error {
	return nil
}
