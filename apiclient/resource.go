package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goliatone/go-resource-list/cache"
	"github.com/goliatone/go-resource-list/query"
)

// Resource is the REST collection at /{path}. It satisfies resource.Repository[T].
type Resource[T any] struct {
	client *Client
	path   string
}

// NewResource binds the collection at path, e.g. "recruitments".
func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{client: c, path: path}
}

// List fetches the page of the collection described by key.
func (r *Resource[T]) List(ctx context.Context, key query.Key) (cache.ResultPage[T], error) {
	params := url.Values{}
	for _, name := range key.Filters.Names() {
		params.Set(name, key.Filters.Get(name))
	}
	params.Set(query.ParamPage, strconv.Itoa(key.Page.Index))
	params.Set(query.ParamPageSize, strconv.Itoa(key.Page.Size))

	var page cache.ResultPage[T]
	if err := r.client.Do(ctx, http.MethodGet, r.path, params, nil, &page); err != nil {
		return cache.ResultPage[T]{}, err
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page, nil
}

func (r *Resource[T]) GetByID(ctx context.Context, id string) (T, error) {
	var record T
	err := r.client.Do(ctx, http.MethodGet, r.recordPath(id), nil, nil, &record)
	return record, err
}

func (r *Resource[T]) Create(ctx context.Context, record T) (T, error) {
	var created T
	err := r.client.Do(ctx, http.MethodPost, r.path, nil, record, &created)
	return created, err
}

func (r *Resource[T]) Update(ctx context.Context, id string, record T) (T, error) {
	var updated T
	err := r.client.Do(ctx, http.MethodPut, r.recordPath(id), nil, record, &updated)
	return updated, err
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.Do(ctx, http.MethodDelete, r.recordPath(id), nil, nil, nil)
}

func (r *Resource[T]) recordPath(id string) string {
	return r.path + "/" + url.PathEscape(id)
}
