// Package resource decorates a remote resource repository with the shared fetch
// cache and the mutation coordinator.
//
// Reads (List, GetByID) go through the cache, so identical requests from several
// lists share one upstream call. Writes (Create, Update, Delete) pass through to the
// base repository and, when they succeed, invalidate every cached read of the
// resource plus any related resources configured with WithRelated.
package resource

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/cache"
	"github.com/goliatone/go-resource-list/mutation"
	"github.com/goliatone/go-resource-list/query"
)

// Repository is the upstream collaborator for one resource type.
type Repository[T any] interface {
	List(ctx context.Context, key query.Key) (cache.ResultPage[T], error)
	GetByID(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, id string, record T) (T, error)
	Delete(ctx context.Context, id string) error
}

// idFilter is the filter name of single-record keys.
const idFilter = "id"

// Client is safe for concurrent use.
type Client[T any] struct {
	resource string
	base     Repository[T]
	cache    *cache.Cache
	coord    *mutation.Coordinator
	related  []string
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	related []string
	logger  *zap.Logger
}

// WithRelated lists resources whose cached lists are also invalidated after a write,
// for example applications after a recruitment is deleted.
func WithRelated(resources ...string) Option {
	return func(o *clientOptions) {
		o.related = append(o.related, resources...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a Client for resource that wraps base.
func New[T any](resource string, base Repository[T], c *cache.Cache, coord *mutation.Coordinator, opts ...Option) *Client[T] {
	o := clientOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	resource = query.NormalizeResource(resource)
	return &Client[T]{
		resource: resource,
		base:     base,
		cache:    c,
		coord:    coord,
		related:  o.related,
		logger:   o.logger.With(zap.String("resource", resource)),
	}
}

// Resource returns the normalized resource type name.
func (c *Client[T]) Resource() string {
	return c.resource
}

// Fetcher returns the list fetcher to hand to a list controller.
func (c *Client[T]) Fetcher() cache.Fetcher[T] {
	return c.base.List
}

// List retrieves one page of records, with caching.
func (c *Client[T]) List(ctx context.Context, filters query.FilterSet, page query.PageSpec) (cache.ResultPage[T], error) {
	key := query.NewKey(c.resource, filters, page)
	return cache.Fetch(ctx, c.cache, key, c.base.List)
}

// GetByID retrieves a record by ID, with caching. The cached entry is dropped with
// the resource's lists after any write.
func (c *Client[T]) GetByID(ctx context.Context, id string) (T, error) {
	key := query.NewKey(c.resource, query.FilterSet{idFilter: id}, query.PageSpec{Index: 1, Size: 1})
	res, err := cache.Fetch(ctx, c.cache, key, func(ctx context.Context, _ query.Key) (cache.ResultPage[T], error) {
		record, err := c.base.GetByID(ctx, id)
		if err != nil {
			return cache.ResultPage[T]{}, err
		}
		return cache.ResultPage[T]{Items: []T{record}, Total: 1}, nil
	})
	if err != nil || len(res.Items) == 0 {
		var zero T
		return zero, err
	}
	return res.Items[0], nil
}

// Create creates a new record
func (c *Client[T]) Create(ctx context.Context, record T) (T, error) {
	return mutation.Do(c.writeContext(ctx), c.coord, c.resource, func(ctx context.Context) (T, error) {
		return c.base.Create(ctx, record)
	})
}

// Update replaces the record identified by id
func (c *Client[T]) Update(ctx context.Context, id string, record T) (T, error) {
	return mutation.Do(c.writeContext(ctx), c.coord, c.resource, func(ctx context.Context) (T, error) {
		return c.base.Update(ctx, id, record)
	})
}

// Delete deletes the record identified by id
func (c *Client[T]) Delete(ctx context.Context, id string) error {
	err := c.coord.PerformOn(c.writeContext(ctx), c.resource, func(ctx context.Context) error {
		return c.base.Delete(ctx, id)
	})
	if err != nil {
		c.logger.Debug("delete failed", zap.String("id", id), zap.Error(err))
	}
	return err
}

func (c *Client[T]) writeContext(ctx context.Context) context.Context {
	if len(c.related) == 0 {
		return ctx
	}
	return mutation.WithAffected(ctx, c.related...)
}
