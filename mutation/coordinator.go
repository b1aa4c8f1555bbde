// Package mutation runs writes against the remote service and invalidates the cached
// reads they affect.
//
// Invalidation is coarse: after a successful write to a resource type every cached
// list of that type is evicted, whatever its filters or page. Lists of the type that
// are on screen re-fetch on their next read. A failed write leaves the cache as it was
// and returns a mutation error to the caller.
package mutation

import (
	"context"

	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/cache"
	"github.com/goliatone/go-resource-list/errkind"
)

// Invalidator evicts cached entries. *cache.Cache implements it.
type Invalidator interface {
	Invalidate(pred cache.Predicate) int
}

// Target is a secondary cache invalidated per resource type, such as facet options.
type Target interface {
	InvalidateResource(resource string) int
}

// Outcome reports one finished mutation.
type Outcome struct {
	// Resource is the resource type written to. It is empty for Perform.
	Resource string
	// Affected lists every resource type that was invalidated.
	Affected []string
	Err      error
	// Evicted is the number of fetch cache entries evicted.
	Evicted int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTargets adds secondary caches invalidated by PerformOn.
func WithTargets(targets ...Target) Option {
	return func(c *Coordinator) {
		for _, t := range targets {
			if t != nil {
				c.targets = append(c.targets, t)
			}
		}
	}
}

// WithObserver registers fn to be called after every mutation.
func WithObserver(fn func(Outcome)) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Coordinator runs writes and invalidates after each success. It is safe for
// concurrent use.
type Coordinator struct {
	cache     Invalidator
	targets   []Target
	observers []func(Outcome)
	logger    *zap.Logger
}

// New creates a Coordinator that invalidates entries of c.
func New(c Invalidator, opts ...Option) *Coordinator {
	coord := &Coordinator{
		cache:  c,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(coord)
	}
	return coord
}

// Perform runs fn. When it succeeds, every entry matching affected is evicted before
// Perform returns. When it fails, the cache is left untouched and the cause is
// returned wrapped as a mutation error.
func (c *Coordinator) Perform(ctx context.Context, fn func(context.Context) error, affected cache.Predicate) error {
	if err := fn(ctx); err != nil {
		merr := errkind.Mutation(err, "")
		c.logger.Warn("mutation failed", zap.Error(err))
		c.notify(Outcome{Err: merr})
		return merr
	}

	evicted := 0
	if affected != nil {
		evicted = c.cache.Invalidate(affected)
	}
	c.logger.Debug("mutation succeeded", zap.Int("evicted", evicted))
	c.notify(Outcome{Evicted: evicted})
	return nil
}

// PerformOn runs fn as a write to resource. On success every list of resource, and of
// the resource types attached to ctx with WithAffected, is invalidated together with
// the secondary targets.
func (c *Coordinator) PerformOn(ctx context.Context, resource string, fn func(context.Context) error) error {
	resources := dedupeResources(append([]string{resource}, affectedFromContext(ctx)...))

	if err := fn(ctx); err != nil {
		merr := errkind.Mutation(err, resource)
		c.logger.Warn("mutation failed",
			zap.String("resource", resource),
			zap.Error(err),
		)
		c.notify(Outcome{Resource: resource, Affected: resources, Err: merr})
		return merr
	}

	predicates := make([]cache.Predicate, len(resources))
	for i, r := range resources {
		predicates[i] = cache.ForResource(r)
	}
	evicted := c.cache.Invalidate(cache.Any(predicates...))

	for _, t := range c.targets {
		for _, r := range resources {
			t.InvalidateResource(r)
		}
	}

	c.logger.Debug("mutation succeeded",
		zap.String("resource", resource),
		zap.Strings("affected", resources),
		zap.Int("evicted", evicted),
	)
	c.notify(Outcome{Resource: resource, Affected: resources, Evicted: evicted})
	return nil
}

// Do runs fn as a write to resource through c and returns its result.
func Do[R any](ctx context.Context, c *Coordinator, resource string, fn func(context.Context) (R, error)) (R, error) {
	var result R
	err := c.PerformOn(ctx, resource, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}

func (c *Coordinator) notify(o Outcome) {
	for _, fn := range c.observers {
		fn(o)
	}
}
