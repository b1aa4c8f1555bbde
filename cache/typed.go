package cache

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-resource-list/errkind"
	"github.com/goliatone/go-resource-list/query"
)

// ErrInvalidResultType is returned when an entry holds data of another type than the
// caller expects, e.g. two callers use different item types for the same key.
var ErrInvalidResultType = goerrors.New("cached result has an unexpected type", goerrors.CategoryInternal).
	WithTextCode("INVALID_RESULT_TYPE")

// maxSupersededRetries bounds how often Fetch follows a superseding request.
const maxSupersededRetries = 3

// ResultPage is one page of a list. Total is the number of items across all pages.
type ResultPage[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// Fetcher loads one page of T for key.
type Fetcher[T any] func(ctx context.Context, key query.Key) (ResultPage[T], error)

// Erase adapts f to the untyped FetchFunc the Cache stores.
func (f Fetcher[T]) Erase() FetchFunc {
	return func(ctx context.Context, key query.Key) (any, error) {
		page, err := f(ctx, key)
		if err != nil {
			return nil, err
		}
		return page, nil
	}
}

// PageOf returns the typed data of entry. ok is false when the entry has no data or
// holds another type.
func PageOf[T any](entry Entry) (page ResultPage[T], ok bool) {
	if !entry.HasData {
		return page, false
	}
	page, ok = entry.Data.(ResultPage[T])
	return page, ok
}

// Fetch is a type-safe read-through: it ensures key is fresh, waits for the result and
// releases the request. A response superseded by a newer request is followed to the
// newer one.
func Fetch[T any](ctx context.Context, c *Cache, key query.Key, fetch Fetcher[T]) (ResultPage[T], error) {
	var zero ResultPage[T]
	erased := fetch.Erase()

	var err error
	for range maxSupersededRetries {
		req := c.EnsureFresh(ctx, key, erased)
		var entry Entry
		entry, err = req.Wait(ctx)
		req.Release()

		if errkind.IsSuperseded(err) {
			continue
		}
		if err != nil {
			return zero, err
		}

		page, ok := entry.Data.(ResultPage[T])
		if !ok {
			return zero, ErrInvalidResultType
		}
		return page, nil
	}
	return zero, err
}
