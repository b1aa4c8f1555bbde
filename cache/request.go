package cache

import (
	"context"
	"sync"
)

var closedDone = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Request is one caller's handle on a fetch. Several requests can share the same
// underlying fetch; each must be released once.
type Request struct {
	cache  *Cache
	flight *flight
	entry  Entry
	once   sync.Once
}

func newRequest(c *Cache, f *flight) *Request {
	return &Request{cache: c, flight: f}
}

func resolvedRequest(entry Entry) *Request {
	return &Request{entry: entry}
}

// Token returns the token of the underlying fetch, or of the entry for a request
// that was answered from the cache.
func (r *Request) Token() uint64 {
	if r.flight == nil {
		return r.entry.Token
	}
	return r.flight.token
}

// RequestID returns the correlation id of the underlying fetch. It is empty for a
// request answered from the cache.
func (r *Request) RequestID() string {
	if r.flight == nil {
		return ""
	}
	return r.flight.requestID
}

// Cached reports whether the request was answered without a fetch.
func (r *Request) Cached() bool {
	return r.flight == nil
}

// Done is closed when the request is settled.
func (r *Request) Done() <-chan struct{} {
	if r.flight == nil {
		return closedDone
	}
	return r.flight.done
}

// Wait blocks until the request settles or ctx is done. A failed fetch returns the
// entry, which still holds any earlier data, together with the network error.
func (r *Request) Wait(ctx context.Context) (Entry, error) {
	if r.flight == nil {
		return r.entry, nil
	}

	select {
	case <-r.flight.done:
		return r.flight.entry, r.flight.err
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	}
}

// Release drops the caller's interest. The fetch is cancelled when every request
// sharing it was released before it settled. Release is idempotent.
func (r *Request) Release() {
	if r == nil || r.flight == nil {
		return
	}
	r.once.Do(func() {
		r.cache.release(r.flight)
	})
}
