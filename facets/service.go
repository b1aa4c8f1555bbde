// Package facets caches the option lists that populate filter controls, for example
// the teams offered by the team filter of the recruitments list.
//
// A facet is identified by the list it filters (Resource), the filter name (Field)
// and, optionally, the resource its options are read from (Source). Option lists are
// held for a TTL and dropped when the Mutation Coordinator reports a write to either
// the list's resource or the source resource.
package facets

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/errkind"
	"github.com/goliatone/go-resource-list/internal/cacheinfra"
	"github.com/goliatone/go-resource-list/query"
)

// Option is one selectable filter value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Facet identifies an option list.
type Facet struct {
	Resource string
	Field    string
	Source   string
}

func (f Facet) key() string {
	return query.ResourcePrefix(f.Resource) + f.Field
}

func (f Facet) source() string {
	if f.Source == "" {
		return query.NormalizeResource(f.Resource)
	}
	return query.NormalizeResource(f.Source)
}

// Loader reads the options of a facet from upstream.
type Loader func(ctx context.Context) ([]Option, error)

// Service is safe for concurrent use.
type Service struct {
	store  *cacheinfra.Store[[]Option]
	logger *zap.Logger

	// key -> normalized source resource
	sources *xsync.MapOf[string, string]
}

// NewService builds a Service on a sturdyc store configured by cfg.
func NewService(cfg cacheinfra.Config, logger *zap.Logger) (*Service, error) {
	store, err := cacheinfra.NewStore[[]Option](cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		logger:  logger,
		sources: xsync.NewMapOf[string, string](),
	}, nil
}

// Options returns the options of facet, calling load when they are not cached.
// Concurrent calls for the same facet share a single load. A loader that returns
// cacheinfra.ErrNotFound yields an empty list.
func (s *Service) Options(ctx context.Context, facet Facet, load Loader) ([]Option, error) {
	key := facet.key()
	s.sources.Store(key, facet.source())

	options, err := s.store.GetOrFetch(ctx, key, func(ctx context.Context) ([]Option, error) {
		s.logger.Debug("loading facet options", zap.String("facet", key))
		return load(ctx)
	})
	switch {
	case err == nil:
		return options, nil
	case cacheinfra.IsMissing(err):
		return []Option{}, nil
	default:
		return nil, errkind.Network(err, key, "")
	}
}

// InvalidateResource drops every option list that filters resource or is read from
// it, and returns how many lists were dropped.
func (s *Service) InvalidateResource(resource string) int {
	resource = query.NormalizeResource(resource)
	dropped := s.store.DeleteByPrefix(query.ResourcePrefix(resource))

	s.sources.Range(func(key, source string) bool {
		if source != resource {
			return true
		}
		_, ok := s.store.Get(key)
		s.store.Delete(key)
		if ok {
			dropped++
		}
		return true
	})

	if dropped > 0 {
		s.logger.Debug("facet options invalidated",
			zap.String("resource", resource),
			zap.Int("dropped", dropped),
		)
	}
	return dropped
}

// Len returns the number of cached option lists.
func (s *Service) Len() int {
	return s.store.Len()
}
