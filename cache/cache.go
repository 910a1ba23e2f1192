package cache

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	NoExpiration      = gocache.NoExpiration
	DefaultExpiration = gocache.DefaultExpiration
)

var ErrInvalidValue = errors.New("could not read value at cache key")

// The Cache interface caches encoded values in a persistent or ephemeral cache database
type Cache interface {
	// Get retrieves the data at "key", and a bool denoting whether the key was found or not.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set will set the value at `key` using data, with an expiration time of `exp`.
	// If there is a value at `key` then it will be overwritten.
	Set(ctx context.Context, key string, data []byte, exp time.Duration) error

	// Delete removes the value at `key`, deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

var _ Cache = (*LocalCache)(nil)

type LocalCache struct {
	*gocache.Cache
}

type Config struct {
	Expiry          time.Duration `yaml:"expiry"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
}

func NewLocalCache(cfg Config) *LocalCache {
	return &LocalCache{Cache: gocache.New(cfg.Expiry, cfg.CleanupInterval)}
}

func (lc *LocalCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := lc.Cache.Get(key)
	if !ok {
		return nil, false, nil
	}

	data, ok := v.([]byte)
	if !ok {
		return nil, false, ErrInvalidValue
	}

	return data, true, nil
}

func (lc *LocalCache) Set(ctx context.Context, key string, data []byte, exp time.Duration) error {
	lc.Cache.Set(key, data, exp)
	return nil
}

func (lc *LocalCache) Delete(ctx context.Context, key string) error {
	lc.Cache.Delete(key)
	return nil
}
