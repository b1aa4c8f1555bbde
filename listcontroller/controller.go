// Package listcontroller drives one filtered, paginated list.
//
// A Controller owns a query.Store, optionally mirrors it into the location through
// urlsync, routes free-text search through a debounce, and reads result pages from
// the shared fetch cache. The presentation layer reads Snapshot and calls the
// mutators; it never talks to the cache directly.
//
// Lifecycle: Idle until Mount, then Loading while the current key is being fetched,
// and Ready or Failed once it settles. Any key change, and any invalidation of the
// current key, moves the controller back to Loading.
//
// After a successful load the page index is clamped to the last valid page, so
// deleting the last items of the last page moves the list one page back.
package listcontroller

import (
	"context"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/cache"
	"github.com/goliatone/go-resource-list/debounce"
	"github.com/goliatone/go-resource-list/errkind"
	"github.com/goliatone/go-resource-list/query"
	"github.com/goliatone/go-resource-list/urlsync"
)

// ErrMounted is returned by Mount when the controller was already mounted or closed.
var ErrMounted = goerrors.New("list controller already mounted", goerrors.CategoryConflict)

// Controller is safe for concurrent use.
type Controller[T any] struct {
	cache  *cache.Cache
	schema query.Schema
	fetch  cache.FetchFunc
	store  *query.Store
	opts   options[T]
	logger *zap.Logger

	search *debounce.Debouncer[string]
	syncer *urlsync.Synchronizer

	unsubscribeStore func()
	unsubscribeCache func()

	mu           sync.Mutex
	ctx          context.Context
	mounted      bool
	closed       bool
	loadSeq      uint64
	key          query.Key
	keyString    string
	req          *cache.Request
	lastRevision uint64
	shown        *cache.ResultPage[T]
	searchInput  string
	snap         Snapshot[T]
	snapKey      string
	dropRetried  bool
}

// New creates a controller for schema that reads pages through c with fetch.
func New[T any](c *cache.Cache, schema query.Schema, fetch cache.Fetcher[T], opts ...Option[T]) (*Controller[T], error) {
	schema = schema.WithDefaults()
	if err := schema.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid list schema")
	}

	o := defaultOptions[T]()
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		store = query.NewStore(schema)
	}

	ctrl := &Controller[T]{
		cache:  c,
		schema: schema,
		fetch:  fetch.Erase(),
		store:  store,
		opts:   o,
		logger: o.logger.With(zap.String("resource", schema.Resource)),
	}
	ctrl.search = debounce.New(o.debounce, ctrl.applySearch, debounce.WithClock(o.clock))

	state := store.State()
	ctrl.snap = Snapshot[T]{
		Status:  StatusIdle,
		Filters: state.Filters,
		Page:    state.Page,
	}
	ctrl.searchInput = state.Filters.Search()
	return ctrl, nil
}

// Store returns the query store driven by the controller.
func (c *Controller[T]) Store() *query.Store {
	return c.store
}

// Mount seeds the state from the location when a history is configured, starts
// listening to the store and the cache, and issues the first load. ctx is handed to
// fetches for its values only; they are cancelled by Close or a key change.
func (c *Controller[T]) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted || c.closed {
		c.mu.Unlock()
		return ErrMounted
	}
	c.mounted = true
	c.ctx = ctx
	c.mu.Unlock()

	var syncer *urlsync.Synchronizer
	if c.opts.history != nil {
		syncOpts := append([]urlsync.Option{
			urlsync.WithClock(c.opts.clock),
			urlsync.WithLogger(c.logger),
		}, c.opts.syncOptions...)
		syncer = urlsync.Mount(c.store, c.opts.history, c.schema, syncOpts...)
	}

	unsubscribeCache := c.cache.Subscribe(c.onCacheEvent)
	unsubscribeStore := c.store.Subscribe(c.onStoreChange)
	search := c.store.State().Filters.Search()

	c.mu.Lock()
	c.syncer = syncer
	c.unsubscribeCache = unsubscribeCache
	c.unsubscribeStore = unsubscribeStore
	c.searchInput = search
	c.mu.Unlock()

	c.load(false)
	return nil
}

// Snapshot returns the current view of the list.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := c.snap
	snap.Filters = c.snap.Filters.Normalize()
	snap.SearchInput = c.searchInput
	return snap
}

// SetSearch records the search text and applies it once typing settles.
func (c *Controller[T]) SetSearch(text string) {
	c.mu.Lock()
	c.searchInput = text
	c.mu.Unlock()

	c.search.Push(text)
	c.publish()
}

// FlushSearch applies a pending search text immediately.
func (c *Controller[T]) FlushSearch() {
	c.search.Flush()
}

// SetFilter sets one facet. An empty value clears it.
func (c *Controller[T]) SetFilter(name, value string) error {
	return c.SetFilters(query.FilterSet{name: value})
}

// SetFilters applies several facets at once. Unknown filter names are rejected.
func (c *Controller[T]) SetFilters(partial query.FilterSet) error {
	var problems []goerrors.FieldError
	for name, value := range partial {
		if !c.schema.HasFilter(name) {
			problems = append(problems, errkind.Field(name, "unknown filter", value))
		}
	}
	if len(problems) > 0 {
		return errkind.Validation("invalid filters", problems...)
	}

	if value, ok := partial[query.SearchField]; ok {
		c.search.Cancel()
		c.mu.Lock()
		c.searchInput = value
		c.mu.Unlock()
	}

	c.store.SetFilter(partial)
	return nil
}

// ResetFilters clears every filter, including a pending search.
func (c *Controller[T]) ResetFilters() {
	c.search.Cancel()
	c.mu.Lock()
	c.searchInput = ""
	c.mu.Unlock()

	if !c.store.ResetFilters() {
		c.publish()
	}
}

// SetPage moves to index. Values below 1 are clamped to 1.
func (c *Controller[T]) SetPage(index int) {
	c.store.SetPageIndex(index)
}

// SetPageSize changes the page size. Sizes outside the schema's set are rejected.
func (c *Controller[T]) SetPageSize(size int) error {
	_, err := c.store.SetPageSize(size)
	return err
}

// Navigated re-reads the location after a back or forward navigation. A pending
// search is dropped and the list follows the state found in the location. It does
// nothing without a history.
func (c *Controller[T]) Navigated() {
	c.mu.Lock()
	syncer := c.syncer
	closed := c.closed
	c.mu.Unlock()
	if syncer == nil || closed {
		return
	}

	c.search.Cancel()
	syncer.Navigated()

	search := c.store.State().Filters.Search()
	c.mu.Lock()
	c.searchInput = search
	c.mu.Unlock()
	c.publish()
}

// FlushURL writes a coalesced location update immediately.
func (c *Controller[T]) FlushURL() {
	c.mu.Lock()
	syncer := c.syncer
	c.mu.Unlock()
	if syncer != nil {
		syncer.Flush()
	}
}

// Refresh re-fetches the current key even when it is fresh.
func (c *Controller[T]) Refresh() {
	c.load(true)
}

// Close stops the controller: the pending search is dropped, the current request is
// released and the URL synchronizer is closed. Snapshot keeps returning the last view.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	req := c.req
	c.req = nil
	syncer := c.syncer
	unsubscribeStore, unsubscribeCache := c.unsubscribeStore, c.unsubscribeCache
	c.mu.Unlock()

	c.search.Close()
	if unsubscribeStore != nil {
		unsubscribeStore()
	}
	if unsubscribeCache != nil {
		unsubscribeCache()
	}
	if syncer != nil {
		syncer.Close()
	}
	if req != nil {
		req.Release()
	}
}

func (c *Controller[T]) applySearch(text string) {
	c.store.SetFilter(query.FilterSet{query.SearchField: text})
}

func (c *Controller[T]) onStoreChange(change query.Change) {
	if change.Origin == query.OriginURL {
		c.search.Cancel()
		c.mu.Lock()
		c.searchInput = change.State.Filters.Search()
		c.mu.Unlock()
	}
	c.load(false)
}

func (c *Controller[T]) onCacheEvent(event cache.Event) {
	c.mu.Lock()
	live := !c.closed && c.mounted && c.keyString != ""
	key, keyString := c.key, c.keyString
	c.mu.Unlock()

	if !live {
		return
	}
	switch event.Kind {
	case cache.EventInvalidated:
		// Reaches keys that were dropped for capacity and so got no EventEvicted.
		if event.Match != nil && event.Match(key) {
			c.reconcile(true, nil)
		}
	case cache.EventUpdated:
		if event.Entry.Key.String() == keyString {
			c.reconcile(false, &event.Entry)
		}
	default:
		if event.Entry.Key.String() == keyString {
			c.reconcile(event.Kind == cache.EventEvicted, nil)
		}
	}
}

// load asks the cache for the key of the store's latest state. Only the most recently
// started load is kept; it read the store after every earlier one.
func (c *Controller[T]) load(force bool) {
	c.mu.Lock()
	if c.closed || !c.mounted {
		c.mu.Unlock()
		return
	}
	c.loadSeq++
	seq := c.loadSeq
	ctx := c.ctx
	c.mu.Unlock()

	key := query.KeyFor(c.schema, c.store.State())

	var req *cache.Request
	if force {
		req = c.cache.Refetch(ctx, key, c.fetch)
	} else {
		req = c.cache.EnsureFresh(ctx, key, c.fetch)
	}

	c.mu.Lock()
	if c.closed || seq != c.loadSeq {
		c.mu.Unlock()
		req.Release()
		return
	}
	prev := c.req
	c.req = req
	if k := key.String(); k != c.keyString {
		c.key = key
		c.keyString = k
		c.lastRevision = 0
		c.dropRetried = false
	}
	c.mu.Unlock()

	if prev != nil {
		prev.Release()
	}

	c.logger.Debug("list load",
		zap.String("key", key.String()),
		zap.Bool("cached", req.Cached()),
		zap.Bool("force", force),
	)
	c.reconcile(false, nil)
}

// reconcile rebuilds the snapshot from the cache entry of the current key. A key
// missing after an invalidation is fetched again. A key dropped to make room for
// another one keeps its settled snapshot; it is fetched again at most once per key
// when nothing is in flight for it. committed is the entry carried by an update
// event, used when the key was dropped before it could be read back.
func (c *Controller[T]) reconcile(invalidated bool, committed *cache.Entry) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	key, keyString := c.key, c.keyString
	c.mu.Unlock()

	entry, ok := c.cache.Get(key)
	if !ok && committed != nil {
		entry, ok = *committed, true
	}

	c.mu.Lock()
	if c.closed || keyString != c.keyString {
		c.mu.Unlock()
		return
	}
	refetch := invalidated
	if !ok && !invalidated {
		if c.snapKey == keyString && (c.snap.Status == StatusReady || c.snap.Status == StatusFailed) {
			c.mu.Unlock()
			return
		}
		if !c.dropRetried && !pending(c.req) {
			c.dropRetried = true
			refetch = true
		}
	}
	if ok && entry.Revision < c.lastRevision {
		c.mu.Unlock()
		return
	}
	if ok {
		c.lastRevision = entry.Revision
	}

	snap := Snapshot[T]{Filters: key.Filters, Page: key.Page}
	clampTo := 0

	page, hasPage := cache.PageOf[T](entry)
	switch {
	case hasPage:
		snap.Items, snap.Total = page.Items, page.Total
		c.shown = &page
	case c.opts.placeholder && c.shown != nil:
		snap.Items, snap.Total = c.shown.Items, c.shown.Total
		snap.Placeholder = true
	}

	switch {
	case !ok:
		snap.Status, snap.Loading = StatusLoading, true
	case entry.Status == cache.StatusLoading:
		snap.Status, snap.Loading = StatusLoading, true
	case entry.Status == cache.StatusError:
		snap.Status, snap.Err = StatusFailed, entry.Err
	case entry.Status == cache.StatusSuccess && entry.HasData && !hasPage:
		snap.Status, snap.Err = StatusFailed, cache.ErrInvalidResultType
	case entry.Status == cache.StatusSuccess:
		snap.Status = StatusReady
		if key.Page.OutOfRange(page.Total) {
			clampTo = key.Page.LastPage(page.Total)
		}
	default:
		snap.Status, snap.Loading = StatusLoading, true
	}

	c.snap = snap
	c.snapKey = keyString
	c.mu.Unlock()

	c.publish()

	switch {
	case !ok && refetch:
		c.load(false)
	case clampTo > 0:
		c.logger.Debug("clamping page index",
			zap.Int("from", key.Page.Index),
			zap.Int("to", clampTo),
			zap.Int("total", page.Total),
		)
		c.store.SetPageIndex(clampTo)
	}
}

func pending(req *cache.Request) bool {
	if req == nil || req.Cached() {
		return false
	}
	select {
	case <-req.Done():
		return false
	default:
		return true
	}
}

func (c *Controller[T]) publish() {
	if len(c.opts.observers) == 0 {
		return
	}
	snap := c.Snapshot()
	for _, fn := range c.opts.observers {
		fn(snap)
	}
}
