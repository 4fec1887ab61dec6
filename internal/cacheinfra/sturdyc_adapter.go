package cacheinfra

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc backed store.
type Config struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is how long an entry lives before sturdyc evicts it. Eviction is the
	// only garbage collection entries get; staleness is tracked separately.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often the cache checks for expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                30 * time.Minute,
		EvictionPercentage: 10,
	}
}

// ToSturdycOptions converts the Config to sturdyc options. Capacity,
// NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// SturdycStore is a key/value store over a sturdyc client with atomic
// read-modify-write. Reads go straight to the sharded client; every write
// takes the store lock so Update observes and replaces a value without
// interleaving.
type SturdycStore[T any] struct {
	mu     sync.RWMutex
	client *sturdyc.Client[T]
}

// NewSturdycStore validates cfg and initializes the sturdyc client.
func NewSturdycStore[T any](cfg Config) (*SturdycStore[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycStore[T]{client: client}, nil
}

// Get returns the value stored under key.
func (s *SturdycStore[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client.Get(key)
}

// Set stores value under key.
func (s *SturdycStore[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Set(key, value)
}

// Delete removes key.
func (s *SturdycStore[T]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client.Delete(key)
}

// Update applies fn to the current value of key. fn receives the value and
// whether it existed and returns the replacement and whether to store it.
// Update returns the value seen by fn.
func (s *SturdycStore[T]) Update(key string, fn func(old T, ok bool) (T, bool)) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.client.Get(key)
	if next, keep := fn(old, ok); keep {
		s.client.Set(key, next)
	}
	return old, ok
}

// UpdatePrefix applies fn to every present key starting with prefix and
// returns the keys that were rewritten, sorted.
func (s *SturdycStore[T]) UpdatePrefix(prefix string, fn func(key string, old T) (T, bool)) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []string
	for _, key := range s.scan(prefix) {
		old, ok := s.client.Get(key)
		if !ok {
			continue
		}
		if next, keep := fn(key, old); keep {
			s.client.Set(key, next)
			touched = append(touched, key)
		}
	}
	return touched
}

// Keys returns the keys starting with prefix, sorted. An empty prefix
// returns every key.
func (s *SturdycStore[T]) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scan(prefix)
}

// Size returns the number of entries held by the client.
func (s *SturdycStore[T]) Size() int {
	return s.client.Size()
}

func (s *SturdycStore[T]) scan(prefix string) []string {
	var keys []string
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
