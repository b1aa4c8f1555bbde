// Package cache is the resource fetch cache shared by every list of a process.
//
// # Overview
//
// A Cache maps a query.Key to an Entry holding the last fetched result page and the
// status of the latest request for that key:
//
//   - EnsureFresh returns the cached result when it is younger than the staleness
//     window, joins the request already in flight for the key, or starts a new one.
//   - Refetch always starts a new request and supersedes the one in flight.
//   - Invalidate and InvalidateResource evict entries after writes.
//
// # Tokens
//
// Every request gets a monotonic token that is stored on the entry when the request
// starts. A response is committed only if its token is still the entry's token, so
// a slow response can never overwrite a newer one. Losing responses are discarded and
// their waiters receive ErrSuperseded.
//
// # Cancellation
//
// EnsureFresh returns a Request. Callers that lose interest call Release; when the
// last interested caller releases, the transport context is cancelled and the entry
// goes back to what it held before the request started.
//
// # Basic Usage
//
// The typed helpers wrap the untyped core:
//
//	c, err := cache.New(cache.DefaultConfig())
//	page, err := cache.Fetch(ctx, c, key, func(ctx context.Context, key query.Key) (cache.ResultPage[Member], error) {
//		return api.ListMembers(ctx, key)
//	})
//
// # Observing
//
// Subscribe delivers an Event after every entry change, outside the cache lock.
// Entries carry a Revision that grows with every change, so observers can drop
// events that arrive out of order.
package cache
