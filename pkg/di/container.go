package di

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/apiclient"
	"github.com/goliatone/go-resource-list/cache"
	"github.com/goliatone/go-resource-list/debounce"
	"github.com/goliatone/go-resource-list/facets"
	"github.com/goliatone/go-resource-list/internal/cacheinfra"
	"github.com/goliatone/go-resource-list/internal/config"
	"github.com/goliatone/go-resource-list/listcontroller"
	"github.com/goliatone/go-resource-list/mutation"
	"github.com/goliatone/go-resource-list/query"
	"github.com/goliatone/go-resource-list/resource"
)

// Config describes the process-wide components built by a Container.
type Config struct {
	// Cache configures the shared fetch cache.
	Cache cache.Config

	// Facets configures the option list store.
	Facets cacheinfra.Config

	// API configures the upstream client. Nil leaves the container without one;
	// resource clients then need an explicit repository.
	API *apiclient.Config

	// Debounce is the search debounce applied to controllers built by the container.
	Debounce time.Duration

	// Logger is shared by every component. Defaults to a no-op logger.
	Logger *zap.Logger

	// Registerer receives the cache metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

// DefaultConfig returns a Config without an upstream client.
func DefaultConfig() Config {
	return Config{
		Cache:    cache.DefaultConfig(),
		Facets:   cacheinfra.DefaultConfig(),
		Debounce: debounce.DefaultInterval,
		Logger:   zap.NewNop(),
	}
}

// Container provides dependency injection for the list components.
// It owns one fetch cache, one mutation coordinator and one facet service per
// process, so every list of a resource type shares cached pages and invalidation.
type Container struct {
	cache       *cache.Cache
	coordinator *mutation.Coordinator
	facets      *facets.Service
	api         *apiclient.Client
	logger      *zap.Logger
	config      Config
}

// NewContainer builds the shared components described by cfg.
func NewContainer(cfg Config) (*Container, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = debounce.DefaultInterval
	}

	cacheCfg := cfg.Cache
	cacheCfg.Logger = cfg.Logger.Named("cache")
	if cfg.Registerer != nil {
		cacheCfg.Metrics = cache.NewMetrics(cfg.Registerer)
	}
	fetchCache, err := cache.New(cacheCfg)
	if err != nil {
		return nil, err
	}

	facetService, err := facets.NewService(cfg.Facets, cfg.Logger.Named("facets"))
	if err != nil {
		fetchCache.Close()
		return nil, err
	}

	var api *apiclient.Client
	if cfg.API != nil {
		api, err = apiclient.New(*cfg.API, apiclient.WithLogger(cfg.Logger.Named("api")))
		if err != nil {
			fetchCache.Close()
			return nil, err
		}
	}

	coordinator := mutation.New(fetchCache,
		mutation.WithTargets(facetService),
		mutation.WithLogger(cfg.Logger.Named("mutation")),
	)

	return &Container{
		cache:       fetchCache,
		coordinator: coordinator,
		facets:      facetService,
		api:         api,
		logger:      cfg.Logger,
		config:      cfg,
	}, nil
}

// NewContainerWithDefaults creates a container using DefaultConfig.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

// FromConfig maps loaded listctl settings to a container.
func FromConfig(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Container, error) {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Capacity = cfg.Cache.Capacity
	cacheCfg.Staleness = cfg.Cache.Staleness

	api := cfg.API.Client()
	return NewContainer(Config{
		Cache:      cacheCfg,
		Facets:     cfg.Facets.Store(),
		API:        &api,
		Debounce:   cfg.Search.Debounce,
		Logger:     logger,
		Registerer: reg,
	})
}

// Close stops the fetch cache.
func (c *Container) Close() {
	c.cache.Close()
}

// Cache returns the shared fetch cache.
func (c *Container) Cache() *cache.Cache {
	return c.cache
}

// Coordinator returns the mutation coordinator. It also invalidates facet options.
func (c *Container) Coordinator() *mutation.Coordinator {
	return c.coordinator
}

// Facets returns the facet option service.
func (c *Container) Facets() *facets.Service {
	return c.facets
}

// APIClient returns the upstream client, or nil when none was configured.
func (c *Container) APIClient() *apiclient.Client {
	return c.api
}

// Logger returns the shared logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// ErrNoAPIClient is returned when a remote resource is requested from a container
// built without API settings.
var ErrNoAPIClient = goerrors.New("container has no api client", goerrors.CategoryInternal)

// NewRemoteClient creates a cached client for the REST collection at /{resource}.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewRemoteClient[Member](container, "members")
func NewRemoteClient[T any](c *Container, name string, opts ...resource.Option) (*resource.Client[T], error) {
	if c.api == nil {
		return nil, ErrNoAPIClient
	}
	base := apiclient.NewResource[T](c.api, query.NormalizeResource(name))
	return NewResourceClient(c, name, base, opts...), nil
}

// NewResourceClient wraps base with the container's cache and coordinator.
func NewResourceClient[T any](c *Container, name string, base resource.Repository[T], opts ...resource.Option) *resource.Client[T] {
	opts = append([]resource.Option{resource.WithLogger(c.logger.Named("resource"))}, opts...)
	return resource.New(name, base, c.cache, c.coordinator, opts...)
}

// NewListController creates a list controller reading through the container's cache
// with the configured debounce and logger. opts are applied after those defaults.
func NewListController[T any](c *Container, schema query.Schema, fetch cache.Fetcher[T], opts ...listcontroller.Option[T]) (*listcontroller.Controller[T], error) {
	defaults := []listcontroller.Option[T]{
		listcontroller.WithDebounce[T](c.config.Debounce),
		listcontroller.WithLogger[T](c.logger.Named("list")),
	}
	return listcontroller.New(c.cache, schema, fetch, append(defaults, opts...)...)
}
