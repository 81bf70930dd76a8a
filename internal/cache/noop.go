package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoOpCache is a cache implementation that does nothing.
// Selected with CACHE_PROVIDER=noop - all operations succeed but no
// actual caching occurs (always cache miss).
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// GetSearchResults always returns nil (cache miss).
func (c *NoOpCache) GetSearchResults(ctx context.Context, key Key) ([]Result, error) {
	return nil, nil
}

// SetSearchResults does nothing and always succeeds.
func (c *NoOpCache) SetSearchResults(ctx context.Context, key Key, results []Result, ttl time.Duration) error {
	return nil
}

// InvalidateDocument does nothing and always succeeds.
func (c *NoOpCache) InvalidateDocument(ctx context.Context, tenantID, documentID uuid.UUID) error {
	return nil
}

// Close does nothing and always succeeds.
func (c *NoOpCache) Close() error {
	return nil
}
