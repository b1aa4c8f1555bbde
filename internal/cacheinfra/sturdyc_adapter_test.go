package cacheinfra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 512 {
		t.Errorf("expected Capacity to be 512, got %d", cfg.Capacity)
	}
	if cfg.NumShards != 64 {
		t.Errorf("expected NumShards to be 64, got %d", cfg.NumShards)
	}
	if cfg.TTL != 5*time.Minute {
		t.Errorf("expected TTL to be 5 minutes, got %v", cfg.TTL)
	}
	if !cfg.MissingRecordStorage {
		t.Error("expected MissingRecordStorage to be true")
	}
	if cfg.EarlyRefresh == nil {
		t.Fatal("expected EarlyRefresh to be configured")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func(mutate func(*Config)) Config {
		cfg := DefaultConfig()
		mutate(&cfg)
		return cfg
	}

	tests := []struct {
		name      string
		cfg       Config
		wantError bool
	}{
		{name: "valid default config", cfg: DefaultConfig()},
		{name: "no early refresh", cfg: valid(func(c *Config) { c.EarlyRefresh = nil })},
		{name: "zero capacity", cfg: valid(func(c *Config) { c.Capacity = 0 }), wantError: true},
		{name: "negative shards", cfg: valid(func(c *Config) { c.NumShards = -1 }), wantError: true},
		{name: "zero ttl", cfg: valid(func(c *Config) { c.TTL = 0 }), wantError: true},
		{name: "eviction percentage above 100", cfg: valid(func(c *Config) { c.EvictionPercentage = 101 }), wantError: true},
		{name: "negative eviction interval", cfg: valid(func(c *Config) { c.EvictionInterval = -time.Second }), wantError: true},
		{
			name: "max refresh before min refresh",
			cfg: valid(func(c *Config) {
				c.EarlyRefresh = &EarlyRefreshConfig{
					MinAsyncRefreshTime: time.Minute,
					MaxAsyncRefreshTime: time.Second,
					SyncRefreshTime:     2 * time.Minute,
				}
			}),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewStore_InvalidConfig(t *testing.T) {
	_, err := NewStore[string](Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Errorf("expected validation category, got %v", err)
	}
}

func newTestStore(t *testing.T) *Store[[]string] {
	t.Helper()
	cfg := DefaultConfig()
	cfg.EarlyRefresh = nil
	store, err := NewStore[[]string](cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestStore_GetOrFetchCachesValue(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"T1", "T2"}, nil
	}

	for range 3 {
		got, err := store.GetOrFetch(context.Background(), "teams:options", fetch)
		if err != nil {
			t.Fatalf("GetOrFetch: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 options, got %v", got)
		}
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("expected one loader call, got %d", n)
	}
	if _, ok := store.Get("teams:options"); !ok {
		t.Error("expected value to be stored")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", store.Len())
	}
}

func TestStore_ErrorsAreNotCached(t *testing.T) {
	store := newTestStore(t)
	boom := errors.New("upstream down")
	var calls atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		return nil, boom
	}

	for range 2 {
		if _, err := store.GetOrFetch(context.Background(), "k", fetch); !errors.Is(err, boom) {
			t.Fatalf("expected loader error, got %v", err)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected the loader to be retried, got %d calls", n)
	}
}

func TestStore_MissingRecords(t *testing.T) {
	store := newTestStore(t)
	var calls atomic.Int32
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		return nil, ErrNotFound
	}

	for range 2 {
		_, err := store.GetOrFetch(context.Background(), "unknown", fetch)
		if !IsMissing(err) {
			t.Fatalf("expected a missing record, got %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected the miss to be remembered, got %d calls", n)
	}
}

func TestStore_DeleteByPrefix(t *testing.T) {
	store := newTestStore(t)
	value := func(context.Context) ([]string, error) { return []string{"x"}, nil }

	for _, key := range []string{"members:team", "members:role", "teams:lead"} {
		if _, err := store.GetOrFetch(context.Background(), key, value); err != nil {
			t.Fatalf("GetOrFetch(%s): %v", key, err)
		}
	}

	if n := store.DeleteByPrefix("members:"); n != 2 {
		t.Errorf("expected 2 keys removed, got %d", n)
	}
	if _, ok := store.Get("teams:lead"); !ok {
		t.Error("expected unrelated key to survive")
	}

	store.Delete("teams:lead")
	if _, ok := store.Get("teams:lead"); ok {
		t.Error("expected key to be deleted")
	}
}
