package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss возвращается из Get, когда ключ отсутствует
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the interface for caching operations
type Cache interface {
	// Get retrieves a value from cache into dest; ErrCacheMiss if the key is absent
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in cache; ttl <= 0 uses the implementation default
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeletePattern removes all keys matching pattern
	DeletePattern(ctx context.Context, pattern string) error

	// Close closes the cache connection
	Close() error
}
