package listcontroller

import (
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/debounce"
	"github.com/goliatone/go-resource-list/pkg/clock"
	"github.com/goliatone/go-resource-list/query"
	"github.com/goliatone/go-resource-list/urlsync"
)

type options[T any] struct {
	history     urlsync.History
	syncOptions []urlsync.Option
	clock       clock.Clock
	debounce    time.Duration
	logger      *zap.Logger
	placeholder bool
	observers   []func(Snapshot[T])
	store       *query.Store
}

func defaultOptions[T any]() options[T] {
	return options[T]{
		clock:       clock.Real(),
		debounce:    debounce.DefaultInterval,
		logger:      zap.NewNop(),
		placeholder: true,
	}
}

// Option configures a Controller.
type Option[T any] func(*options[T])

// WithHistory mirrors the query state into h. The initial state is read from it on
// Mount.
func WithHistory[T any](h urlsync.History, opts ...urlsync.Option) Option[T] {
	return func(o *options[T]) {
		o.history = h
		o.syncOptions = append(o.syncOptions, opts...)
	}
}

// WithClock sets the time source of the search debounce.
func WithClock[T any](c clock.Clock) Option[T] {
	return func(o *options[T]) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithDebounce sets the quiet interval applied to SetSearch.
func WithDebounce[T any](d time.Duration) Option[T] {
	return func(o *options[T]) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(o *options[T]) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPlaceholder controls whether the previous page stays visible while a new key
// has no data yet. Enabled by default.
func WithPlaceholder[T any](enabled bool) Option[T] {
	return func(o *options[T]) {
		o.placeholder = enabled
	}
}

// WithObserver registers fn to receive every new snapshot. fn runs on the goroutine
// that caused the change and must not block.
func WithObserver[T any](fn func(Snapshot[T])) Option[T] {
	return func(o *options[T]) {
		if fn != nil {
			o.observers = append(o.observers, fn)
		}
	}
}

// WithStore uses an existing store instead of creating one.
func WithStore[T any](store *query.Store) Option[T] {
	return func(o *options[T]) {
		o.store = store
	}
}
