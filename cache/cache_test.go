package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-resource-list/errkind"
	"github.com/goliatone/go-resource-list/pkg/testsupport"
	"github.com/goliatone/go-resource-list/query"
)

func newTestCache(t *testing.T, mutate ...func(*Config)) (*Cache, *testsupport.FakeClock) {
	t.Helper()

	clk := testsupport.NewFakeClock()
	cfg := DefaultConfig()
	cfg.Clock = clk
	cfg.Logger = testsupport.Logger(t)
	cfg.Metrics = NewMetrics(prometheus.NewRegistry())
	for _, fn := range mutate {
		fn(&cfg)
	}

	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, clk
}

func jobsKey(team string, index int) query.Key {
	return query.NewKey("jobs", query.FilterSet{"team": team}, query.PageSpec{Index: index, Size: 10})
}

func wait(t *testing.T, req *Request) (Entry, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	entry, err := req.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "request did not settle")
	return entry, err
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds(key query.Key) []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []EventKind
	for _, e := range l.events {
		if e.Entry.Key.Equal(key) {
			out = append(out, e.Kind)
		}
	}
	return out
}

func TestCache_DeduplicatesWithinStalenessWindow(t *testing.T) {
	c, clk := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)
	ctx := context.Background()

	first := c.EnsureFresh(ctx, key, fetcher.Fetch)
	second := c.EnsureFresh(ctx, key, fetcher.Fetch)
	assert.Equal(t, first.Token(), second.Token())

	calls := fetcher.WaitForCalls(t, 1)
	calls[0].Resolve("page-1")

	e1, err := wait(t, first)
	require.NoError(t, err)
	e2, err := wait(t, second)
	require.NoError(t, err)
	assert.Equal(t, "page-1", e1.Data)
	assert.Equal(t, e1, e2)

	clk.Advance(10 * time.Second)
	third := c.EnsureFresh(ctx, key, fetcher.Fetch)
	assert.True(t, third.Cached())
	e3, err := wait(t, third)
	require.NoError(t, err)
	assert.Equal(t, "page-1", e3.Data)

	assert.Equal(t, 1, fetcher.Count())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.fetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.joins))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.hits))
}

func TestCache_StaleEntryRefetchesWithPlaceholder(t *testing.T) {
	c, clk := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)
	ctx := context.Background()

	req := c.EnsureFresh(ctx, key, fetcher.Fetch)
	fetcher.WaitForCalls(t, 1)[0].Resolve("old")
	_, err := wait(t, req)
	require.NoError(t, err)

	clk.Advance(DefaultStaleness)

	req = c.EnsureFresh(ctx, key, fetcher.Fetch)
	assert.False(t, req.Cached())

	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, StatusLoading, entry.Status)
	assert.Equal(t, "old", entry.Data, "previous data stays visible while loading")

	fetcher.WaitForCalls(t, 2)[1].Resolve("new")
	entry, err = wait(t, req)
	require.NoError(t, err)
	assert.Equal(t, "new", entry.Data)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Equal(t, clk.Now(), entry.FetchedAt)
}

func TestCache_SupersededResponseIsDiscarded(t *testing.T) {
	c, _ := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)
	ctx := context.Background()

	slow := c.EnsureFresh(ctx, key, fetcher.Fetch)
	fast := c.Refetch(ctx, key, fetcher.Fetch)
	assert.Greater(t, fast.Token(), slow.Token())

	// The superseded call is the one whose context was cancelled.
	calls := fetcher.WaitForCalls(t, 2)
	stale, current := calls[0], calls[1]
	if current.Cancelled() {
		stale, current = current, stale
	}
	assert.True(t, stale.Cancelled(), "superseded transport is cancelled")
	assert.False(t, current.Cancelled())

	current.Resolve("fresh")
	entry, err := wait(t, fast)
	require.NoError(t, err)
	assert.Equal(t, "fresh", entry.Data)

	stale.Resolve("stale")

	_, err = wait(t, slow)
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.True(t, errkind.IsSuperseded(err))

	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "fresh", entry.Data)
	assert.Equal(t, fast.Token(), entry.Token)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.discarded))
}

func TestCache_SlowResponseArrivingLastNeverWins(t *testing.T) {
	c, _ := newTestCache(t)
	key := jobsKey("T1", 1)
	ctx := context.Background()

	release := make(chan struct{})
	slowFetch := func(ctx context.Context, _ query.Key) (any, error) {
		<-release
		return "slow", nil
	}
	fastFetch := func(context.Context, query.Key) (any, error) {
		return "fast", nil
	}

	slow := c.EnsureFresh(ctx, key, slowFetch)
	fast := c.Refetch(ctx, key, fastFetch)
	_, err := wait(t, fast)
	require.NoError(t, err)

	close(release)
	_, err = wait(t, slow)
	require.ErrorIs(t, err, ErrSuperseded)

	entry, _ := c.Get(key)
	assert.Equal(t, "fast", entry.Data)
}

func TestCache_FailureKeepsPreviousData(t *testing.T) {
	c, clk := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)
	other := jobsKey("T2", 1)
	ctx := context.Background()

	req := c.EnsureFresh(ctx, key, fetcher.Fetch)
	otherReq := c.EnsureFresh(ctx, other, fetcher.Fetch)
	calls := fetcher.WaitForCalls(t, 2)
	for _, call := range calls {
		call.Resolve("page:" + call.Key.Filters.Get("team"))
	}
	_, err := wait(t, req)
	require.NoError(t, err)
	_, err = wait(t, otherReq)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	req = c.EnsureFresh(ctx, key, fetcher.Fetch)
	fetcher.WaitForCalls(t, 3)[2].Reject(errors.New("connection reset"))

	entry, err := wait(t, req)
	require.Error(t, err)
	assert.True(t, errkind.IsNetwork(err))
	assert.Equal(t, StatusError, entry.Status)
	assert.True(t, errkind.IsNetwork(entry.Err))
	assert.Equal(t, "page:T1", entry.Data)

	otherEntry, _ := c.Get(other)
	assert.Equal(t, StatusSuccess, otherEntry.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.errors))

	retry := c.EnsureFresh(ctx, key, fetcher.Fetch)
	assert.False(t, retry.Cached(), "retry is always permitted")
	fetcher.WaitForCalls(t, 4)[3].Resolve("page:T1:retried")
	entry, err = wait(t, retry)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Nil(t, entry.Err)
}

func TestCache_InvalidateResource(t *testing.T) {
	c, _ := newTestCache(t)
	fetcher := testsupport.NewAutoFetcher(func(k query.Key) (any, error) {
		return k.String(), nil
	})
	ctx := context.Background()

	keys := []query.Key{
		jobsKey("T1", 1),
		jobsKey("T1", 2),
		query.NewKey("Teams", nil, query.PageSpec{Index: 1, Size: 10}),
	}
	for _, key := range keys {
		_, err := wait(t, c.EnsureFresh(ctx, key, fetcher.Fetch))
		require.NoError(t, err)
	}

	log := &eventLog{}
	c.Subscribe(log.record)

	assert.Equal(t, 2, c.InvalidateResource("Jobs"))
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(keys[0])
	assert.False(t, ok)
	_, ok = c.Get(keys[2])
	assert.True(t, ok)
	assert.Equal(t, []EventKind{EventEvicted}, log.kinds(keys[0]))

	req := c.EnsureFresh(ctx, keys[0], fetcher.Fetch)
	assert.False(t, req.Cached(), "next read after invalidation is a genuine fetch")
	_, err := wait(t, req)
	require.NoError(t, err)
	assert.Equal(t, 4, fetcher.Count())
}

func TestCache_InvalidateCancelsInFlight(t *testing.T) {
	c, _ := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)

	req := c.EnsureFresh(context.Background(), key, fetcher.Fetch)
	call := fetcher.WaitForCalls(t, 1)[0]

	assert.Equal(t, 1, c.Invalidate(ForKey(key)))
	assert.True(t, call.Cancelled())

	_, err := wait(t, req)
	assert.ErrorIs(t, err, ErrSuperseded)
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestCache_ReleaseCancelsWhenNobodyIsInterested(t *testing.T) {
	c, _ := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)
	ctx := context.Background()

	first := c.EnsureFresh(ctx, key, fetcher.Fetch)
	second := c.EnsureFresh(ctx, key, fetcher.Fetch)
	call := fetcher.WaitForCalls(t, 1)[0]

	first.Release()
	first.Release()
	assert.False(t, call.Cancelled(), "another caller is still interested")

	second.Release()
	assert.True(t, call.Cancelled())

	select {
	case <-second.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned request did not settle")
	}

	_, ok := c.Get(key)
	assert.False(t, ok, "placeholder without data is removed")
}

func TestCache_CancelledRefetchRestoresPreviousData(t *testing.T) {
	c, clk := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)
	ctx := context.Background()

	req := c.EnsureFresh(ctx, key, fetcher.Fetch)
	fetcher.WaitForCalls(t, 1)[0].Resolve("kept")
	before, err := wait(t, req)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	req = c.EnsureFresh(ctx, key, fetcher.Fetch)
	fetcher.WaitForCalls(t, 2)
	req.Release()
	<-req.Done()

	entry, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Equal(t, "kept", entry.Data)
	assert.Equal(t, before.FetchedAt, entry.FetchedAt)
	assert.Greater(t, entry.Revision, before.Revision)
}

func TestCache_CallerContextDoesNotCancelTransport(t *testing.T) {
	c, _ := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	req := c.EnsureFresh(ctx, key, fetcher.Fetch)
	call := fetcher.WaitForCalls(t, 1)[0]
	cancel()

	assert.False(t, call.Cancelled(), "only Release cancels the transport")
	call.Resolve("done")
	entry, err := wait(t, req)
	require.NoError(t, err)
	assert.Equal(t, "done", entry.Data)
}

func TestCache_CapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(t, func(cfg *Config) { cfg.Capacity = 2 })
	fetcher := testsupport.NewAutoFetcher(func(k query.Key) (any, error) {
		return k.String(), nil
	})
	ctx := context.Background()

	log := &eventLog{}
	c.Subscribe(log.record)

	a, b, d := jobsKey("A", 1), jobsKey("B", 1), jobsKey("D", 1)
	for _, key := range []query.Key{a, b} {
		_, err := wait(t, c.EnsureFresh(ctx, key, fetcher.Fetch))
		require.NoError(t, err)
	}

	// Touch a so b becomes the least recently used entry.
	_, ok := c.Get(a)
	require.True(t, ok)

	_, err := wait(t, c.EnsureFresh(ctx, d, fetcher.Fetch))
	require.NoError(t, err)

	assert.Equal(t, 2, c.Len())
	_, ok = c.Get(b)
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.metrics.evictions) == 1
	}, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		kinds := log.kinds(b)
		return len(kinds) > 0 && kinds[len(kinds)-1] == EventDropped
	}, time.Second, 5*time.Millisecond)
}

func TestCache_DroppedFetchStillCommits(t *testing.T) {
	c, _ := newTestCache(t, func(cfg *Config) { cfg.Capacity = 1 })
	fetcher := testsupport.NewScriptedFetcher[any]()
	ctx := context.Background()

	log := &eventLog{}
	c.Subscribe(log.record)

	a, b := jobsKey("A", 1), jobsKey("B", 1)

	first := c.EnsureFresh(ctx, a, fetcher.Fetch)
	defer first.Release()
	fetcher.WaitForCalls(t, 1)

	second := c.EnsureFresh(ctx, b, fetcher.Fetch)
	defer second.Release()
	calls := fetcher.WaitForCalls(t, 2)

	require.Eventually(t, func() bool {
		for _, kind := range log.kinds(a) {
			if kind == EventDropped {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.False(t, calls[0].Cancelled(), "dropping an entry keeps its fetch running")

	joined := c.EnsureFresh(ctx, a, fetcher.Fetch)
	defer joined.Release()
	assert.False(t, joined.Cached())
	assert.Equal(t, first.Token(), joined.Token())

	calls[0].Resolve("a")
	entry, err := wait(t, first)
	require.NoError(t, err)
	assert.Equal(t, "a", entry.Data)

	stored, ok := c.Get(a)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, stored.Status)

	calls[1].Resolve("b")
	entry, err = wait(t, second)
	require.NoError(t, err)
	assert.Equal(t, "b", entry.Data)

	assert.Equal(t, 2, fetcher.Count())
}

func TestCache_SubscribeEvents(t *testing.T) {
	c, _ := newTestCache(t)
	fetcher := testsupport.NewScriptedFetcher[any]()
	key := jobsKey("T1", 1)

	log := &eventLog{}
	unsubscribe := c.Subscribe(log.record)

	req := c.EnsureFresh(context.Background(), key, fetcher.Fetch)
	fetcher.WaitForCalls(t, 1)[0].Resolve("x")
	_, err := wait(t, req)
	require.NoError(t, err)

	assert.Equal(t, []EventKind{EventLoading, EventUpdated}, log.kinds(key))

	log.mu.Lock()
	loading, updated := log.events[0].Entry, log.events[1].Entry
	log.mu.Unlock()
	assert.Less(t, loading.Revision, updated.Revision)

	unsubscribe()
	c.InvalidateResource("jobs")
	assert.Len(t, log.kinds(key), 2)
}

func TestCache_FetchPanicBecomesNetworkError(t *testing.T) {
	c, _ := newTestCache(t)
	key := jobsKey("T1", 1)

	req := c.EnsureFresh(context.Background(), key, func(context.Context, query.Key) (any, error) {
		panic("boom")
	})
	_, err := wait(t, req)
	require.Error(t, err)
	assert.True(t, errkind.IsNetwork(err))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, true},
		{"negative capacity", func(c *Config) { c.Capacity = -1 }, true},
		{"zero staleness", func(c *Config) { c.Staleness = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	_, err := New(Config{})
	assert.Error(t, err)
}
