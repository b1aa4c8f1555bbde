package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-resource-list/query"
)

// FetchCall is one invocation of a ScriptedFetcher, waiting for Resolve or Reject.
type FetchCall[R any] struct {
	Key   query.Key
	Ctx   context.Context
	reply chan fetchReply[R]
	once  sync.Once
}

type fetchReply[R any] struct {
	value R
	err   error
}

// Resolve completes the call with value.
func (c *FetchCall[R]) Resolve(value R) {
	c.once.Do(func() {
		c.reply <- fetchReply[R]{value: value}
	})
}

// Reject completes the call with err.
func (c *FetchCall[R]) Reject(err error) {
	c.once.Do(func() {
		c.reply <- fetchReply[R]{err: err}
	})
}

// Cancelled reports whether the caller's context was cancelled.
func (c *FetchCall[R]) Cancelled() bool {
	return c.Ctx.Err() != nil
}

// ScriptedFetcher records every fetch. Calls block until the test resolves them,
// unless an Auto responder is set.
type ScriptedFetcher[R any] struct {
	mu    sync.Mutex
	calls []*FetchCall[R]
	auto  func(query.Key) (R, error)
}

// NewScriptedFetcher returns a fetcher whose calls block until resolved.
func NewScriptedFetcher[R any]() *ScriptedFetcher[R] {
	return &ScriptedFetcher[R]{}
}

// NewAutoFetcher returns a fetcher that answers every call with respond.
func NewAutoFetcher[R any](respond func(query.Key) (R, error)) *ScriptedFetcher[R] {
	return &ScriptedFetcher[R]{auto: respond}
}

// Fetch matches the cache fetcher signature.
func (f *ScriptedFetcher[R]) Fetch(ctx context.Context, key query.Key) (R, error) {
	call := &FetchCall[R]{Key: key, Ctx: ctx, reply: make(chan fetchReply[R], 1)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	auto := f.auto
	f.mu.Unlock()

	if auto != nil {
		return auto(key)
	}

	select {
	case r := <-call.reply:
		return r.value, r.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Calls returns every call so far.
func (f *ScriptedFetcher[R]) Calls() []*FetchCall[R] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FetchCall[R](nil), f.calls...)
}

// Count returns the number of calls so far.
func (f *ScriptedFetcher[R]) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// WaitForCalls blocks until at least n calls were made and returns them.
func (f *ScriptedFetcher[R]) WaitForCalls(t testing.TB, n int) []*FetchCall[R] {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if calls := f.Calls(); len(calls) >= n {
			return calls
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d fetch calls, got %d", n, f.Count())
	return nil
}
