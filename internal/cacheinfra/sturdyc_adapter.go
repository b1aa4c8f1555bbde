package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// ErrNotFound is returned by a fetch function to record that a key has no value.
// With MissingRecordStorage enabled the miss itself is cached.
var ErrNotFound = sturdyc.ErrNotFound

// Config holds the configuration for a sturdyc backed Store.
type Config struct {
	// Capacity defines the maximum number of entries that the store can hold.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards for concurrent access.
	// Must be greater than 0. Default: 64
	NumShards int

	// TTL is the time-to-live for stored entries. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the store reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh configures background refreshes of frequently read entries.
	// If nil, early refresh is disabled.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage caches ErrNotFound results so that repeated reads of a
	// missing key do not reach the loader.
	MissingRecordStorage bool

	// EvictionInterval sets how often expired entries are swept.
	// Zero keeps the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig configures early refresh behavior.
type EarlyRefreshConfig struct {
	// MinAsyncRefreshTime is the minimum time after which an async refresh can occur
	MinAsyncRefreshTime time.Duration

	// MaxAsyncRefreshTime is the maximum time after which an async refresh can occur
	MaxAsyncRefreshTime time.Duration

	// SyncRefreshTime is when a refresh becomes synchronous instead of async
	SyncRefreshTime time.Duration

	// RetryBaseDelay is the base delay for retry attempts when a refresh fails
	RetryBaseDelay time.Duration
}

// DefaultConfig returns a Config sized for facet option lists.
func DefaultConfig() Config {
	return Config{
		Capacity:           512,
		NumShards:          64,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
		EarlyRefresh: &EarlyRefreshConfig{
			MinAsyncRefreshTime: time.Minute,
			MaxAsyncRefreshTime: 2 * time.Minute,
			SyncRefreshTime:     4 * time.Minute,
			RetryBaseDelay:      200 * time.Millisecond,
		},
		MissingRecordStorage: true,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}

	if c.EarlyRefresh == nil {
		return nil
	}
	r := c.EarlyRefresh
	return validation.ValidateStruct(r,
		validation.Field(&r.MinAsyncRefreshTime, validation.Min(time.Duration(0))),
		validation.Field(&r.MaxAsyncRefreshTime, validation.Min(r.MinAsyncRefreshTime)),
		validation.Field(&r.SyncRefreshTime, validation.Min(r.MaxAsyncRefreshTime)),
		validation.Field(&r.RetryBaseDelay, validation.Min(time.Duration(0))),
	)
}

func (c Config) options() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}

	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}

	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}

	return options
}

// Store is a typed read-through cache. Concurrent GetOrFetch calls for the same key
// share one call to the loader.
type Store[T any] struct {
	client *sturdyc.Client[T]
}

// NewStore validates cfg and builds a Store.
func NewStore[T any](cfg Config) (*Store[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid store configuration")
	}

	client := sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.options()...,
	)
	return &Store[T]{client: client}, nil
}

// GetOrFetch returns the value stored under key, calling fetch on a miss.
func (s *Store[T]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	return s.client.GetOrFetch(ctx, key, fetch)
}

// Get returns the value stored under key without fetching.
func (s *Store[T]) Get(key string) (T, bool) {
	return s.client.Get(key)
}

// Delete removes a single entry.
func (s *Store[T]) Delete(key string) {
	s.client.Delete(key)
}

// DeleteByPrefix removes every entry whose key starts with prefix and returns how
// many keys were removed.
func (s *Store[T]) DeleteByPrefix(prefix string) int {
	n := 0
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			s.client.Delete(key)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries.
func (s *Store[T]) Len() int {
	return s.client.Size()
}

// IsMissing reports whether err marks a key without a value, either freshly
// returned by the loader or remembered from an earlier miss.
func IsMissing(err error) bool {
	return errors.Is(err, sturdyc.ErrNotFound) || errors.Is(err, sturdyc.ErrMissingRecord)
}
