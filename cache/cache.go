package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/errkind"
	"github.com/goliatone/go-resource-list/pkg/clock"
	"github.com/goliatone/go-resource-list/query"
)

// ErrSuperseded is returned to waiters of a request whose response was discarded,
// because a newer request for the same key was issued or the entry was evicted.
var ErrSuperseded = goerrors.New("response superseded by a newer request", goerrors.CategoryOperation).
	WithTextCode(errkind.TextCodeSuperseded)

// Cache is the process-wide fetch cache. It is safe for concurrent use.
type Cache struct {
	cfg     Config
	clock   clock.Clock
	logger  *zap.Logger
	metrics *Metrics

	mu      sync.Mutex
	entries *ttlcache.Cache[string, Entry]
	flights map[string]*flight

	tokens    atomic.Uint64
	revisions atomic.Uint64

	subscribers    *xsync.MapOf[uint64, func(Event)]
	nextSubscriber atomic.Uint64

	stopEvictions func()
}

// flight is one request for a key. Fields below mu are guarded by Cache.mu; result
// fields are written once before done is closed.
type flight struct {
	key       query.Key
	token     uint64
	requestID string
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}

	// previous is what the entry held before the first of a chain of superseding
	// requests started, so an abandoned request can restore it.
	previous    Entry
	hadPrevious bool

	refs      int
	abandoned bool
	finished  bool

	entry Entry
	err   error
}

// New creates a Cache from cfg.
func New(cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache config")
	}
	cfg = cfg.withDefaults()

	c := &Cache{
		cfg:         cfg,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		flights:     make(map[string]*flight),
		subscribers: xsync.NewMapOf[uint64, func(Event)](),
		entries: ttlcache.New[string, Entry](
			ttlcache.WithCapacity[string, Entry](uint64(cfg.Capacity)),
			ttlcache.WithTTL[string, Entry](ttlcache.NoTTL),
		),
	}
	c.stopEvictions = c.entries.OnEviction(c.onEviction)
	return c, nil
}

// Close cancels every request in flight and stops eviction handling.
func (c *Cache) Close() {
	c.stopEvictions()

	c.mu.Lock()
	for _, f := range c.flights {
		f.cancel()
	}
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Get returns a copy of the entry for key.
func (c *Cache) Get(key query.Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := c.entries.Get(key.String())
	if item == nil {
		return Entry{}, false
	}
	return item.Value(), true
}

// EnsureFresh returns a request for key that is already resolved when the entry is
// fresh, joins the request in flight when there is one, and otherwise starts a new
// request with fetch. The caller must Release the request when it loses interest.
func (c *Cache) EnsureFresh(ctx context.Context, key query.Key, fetch FetchFunc) *Request {
	k := key.String()

	c.mu.Lock()
	item := c.entries.Get(k)
	if item != nil && c.freshLocked(item.Value()) {
		c.mu.Unlock()
		c.metrics.hit()
		return resolvedRequest(item.Value())
	}
	// A flight whose entry was dropped for capacity is still joinable.
	if f := c.flights[k]; f != nil && !f.abandoned && (item == nil || item.Value().Status == StatusLoading) {
		f.refs++
		c.mu.Unlock()
		c.metrics.join()
		return newRequest(c, f)
	}
	f, event := c.startLocked(ctx, key)
	c.mu.Unlock()

	c.publish(event)
	go c.run(f, fetch)
	return newRequest(c, f)
}

// Refetch starts a new request for key even when the entry is fresh. A request in
// flight for the key is cancelled and its response discarded.
func (c *Cache) Refetch(ctx context.Context, key query.Key, fetch FetchFunc) *Request {
	c.mu.Lock()
	f, event := c.startLocked(ctx, key)
	c.mu.Unlock()

	c.publish(event)
	go c.run(f, fetch)
	return newRequest(c, f)
}

// Invalidate evicts every entry matching pred and cancels their requests. It returns
// the number of evicted entries. Subscribers get one EventEvicted per entry followed
// by a single EventInvalidated.
func (c *Cache) Invalidate(pred Predicate) int {
	if pred == nil {
		return 0
	}

	var events []Event

	c.mu.Lock()
	for k, item := range c.entries.Items() {
		entry := item.Value()
		if !pred(entry.Key) {
			continue
		}
		c.entries.Delete(k)
		if f := c.flights[k]; f != nil {
			delete(c.flights, k)
			f.cancel()
		}
		events = append(events, Event{Kind: EventEvicted, Entry: c.evictedLocked(entry)})
	}
	c.mu.Unlock()

	evicted := len(events)
	if evicted > 0 {
		c.logger.Debug("invalidated cache entries", zap.Int("count", evicted))
	}
	c.publish(append(events, Event{Kind: EventInvalidated, Match: pred})...)
	return evicted
}

// InvalidateResource evicts every entry of the given resource type.
func (c *Cache) InvalidateResource(resource string) int {
	return c.Invalidate(ForResource(resource))
}

// Subscribe registers fn for entry events. Events are delivered on the goroutine
// that caused them, after the cache lock is released.
func (c *Cache) Subscribe(fn func(Event)) (cancel func()) {
	id := c.nextSubscriber.Add(1)
	c.subscribers.Store(id, fn)
	return func() {
		c.subscribers.Delete(id)
	}
}

func (c *Cache) freshLocked(entry Entry) bool {
	return entry.Status == StatusSuccess && c.clock.Now().Sub(entry.FetchedAt) < c.cfg.Staleness
}

// startLocked issues a new request for key, superseding the one in flight.
func (c *Cache) startLocked(ctx context.Context, key query.Key) (*flight, Event) {
	k := key.String()

	var previous Entry
	var hadPrevious bool
	if item := c.entries.Get(k); item != nil {
		previous, hadPrevious = item.Value(), true
	}
	if prior := c.flights[k]; prior != nil {
		previous, hadPrevious = prior.previous, prior.hadPrevious
		delete(c.flights, k)
		prior.cancel()
	}

	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &flight{
		key:         key,
		token:       c.tokens.Add(1),
		requestID:   uuid.NewString(),
		ctx:         fctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		previous:    previous,
		hadPrevious: hadPrevious,
		refs:        1,
	}

	entry := Entry{Key: key}
	if hadPrevious {
		entry = previous
		entry.Key = key
	}
	entry.Status = StatusLoading
	entry.Err = nil
	entry.Token = f.token
	entry.Revision = c.revisions.Add(1)

	c.entries.Set(k, entry, ttlcache.NoTTL)
	c.flights[k] = f
	c.metrics.fetch()

	c.logger.Debug("fetch started",
		zap.String("key", k),
		zap.Uint64("token", f.token),
		zap.String("request_id", f.requestID),
	)
	return f, Event{Kind: EventLoading, Entry: entry}
}

func (c *Cache) run(f *flight, fetch FetchFunc) {
	data, err := c.call(f, fetch)
	c.commit(f, data, err)
}

func (c *Cache) call(f *flight, fetch FetchFunc) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerrors.New(fmt.Sprintf("fetch panicked: %v", r), goerrors.CategoryInternal)
		}
	}()
	return fetch(f.ctx, f.key)
}

// commit stores the response of f if f is still the latest request for its key.
func (c *Cache) commit(f *flight, data any, fetchErr error) {
	k := f.key.String()
	var events []Event
	discarded := false

	c.mu.Lock()
	f.finished = true
	latest := c.flights[k] == f
	if latest {
		delete(c.flights, k)
	}

	var current Entry
	stored := false
	item := c.entries.Get(k)
	switch {
	case item != nil && item.Value().Token == f.token:
		current, stored = item.Value(), true
	case item == nil && latest:
		// Dropped for capacity while in flight.
		current = Entry{Key: f.key, Status: StatusLoading, Token: f.token}
	default:
		discarded = true
	}

	switch {
	case discarded:
		f.err = ErrSuperseded

	case fetchErr != nil && f.abandoned:
		f.err = fetchErr
		if f.hadPrevious {
			restored := f.previous
			restored.Revision = c.revisions.Add(1)
			c.entries.Set(k, restored, ttlcache.NoTTL)
			f.entry = restored
			events = append(events, Event{Kind: EventUpdated, Entry: restored})
		} else if stored {
			evicted := c.evictedLocked(current)
			c.entries.Delete(k)
			events = append(events, Event{Kind: EventEvicted, Entry: evicted})
		}

	case fetchErr != nil:
		entry := current
		entry.Status = StatusError
		entry.Err = errkind.Network(fetchErr, k, f.requestID)
		entry.Revision = c.revisions.Add(1)
		c.entries.Set(k, entry, ttlcache.NoTTL)
		f.entry, f.err = entry, entry.Err
		events = append(events, Event{Kind: EventUpdated, Entry: entry})

	default:
		entry := current
		entry.Data = data
		entry.HasData = true
		entry.Status = StatusSuccess
		entry.Err = nil
		entry.FetchedAt = c.clock.Now()
		entry.Revision = c.revisions.Add(1)
		c.entries.Set(k, entry, ttlcache.NoTTL)
		f.entry = entry
		events = append(events, Event{Kind: EventUpdated, Entry: entry})
	}
	c.mu.Unlock()

	f.cancel()
	close(f.done)

	fields := []zap.Field{
		zap.String("key", k),
		zap.Uint64("token", f.token),
		zap.String("request_id", f.requestID),
	}
	switch {
	case discarded:
		c.metrics.discard()
		c.logger.Debug("response discarded", fields...)
	case fetchErr != nil && f.abandoned:
		c.logger.Debug("fetch cancelled", fields...)
	case fetchErr != nil:
		c.metrics.failure()
		c.logger.Warn("fetch failed", append(fields, zap.Error(fetchErr))...)
	default:
		c.logger.Debug("fetch committed", fields...)
	}

	c.publish(events...)
}

// release drops one caller's interest in f. The transport is cancelled when no
// caller is left.
func (c *Cache) release(f *flight) {
	c.mu.Lock()
	f.refs--
	if f.refs > 0 || f.finished {
		c.mu.Unlock()
		return
	}
	f.abandoned = true
	c.mu.Unlock()

	f.cancel()
}

// onEviction handles capacity evictions. A fetch in flight for the key is left
// running; commit stores its result again.
func (c *Cache) onEviction(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, Entry]) {
	if reason != ttlcache.EvictionReasonCapacityReached {
		return
	}

	k := item.Key()

	c.mu.Lock()
	present := c.entries.Has(k)
	dropped := c.evictedLocked(item.Value())
	c.mu.Unlock()

	c.metrics.eviction()
	c.logger.Debug("cache entry dropped", zap.String("key", k))

	if !present {
		c.publish(Event{Kind: EventDropped, Entry: dropped})
	}
}

func (c *Cache) evictedLocked(entry Entry) Entry {
	return Entry{
		Key:      entry.Key,
		Status:   StatusIdle,
		Token:    entry.Token,
		Revision: c.revisions.Add(1),
	}
}

func (c *Cache) publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.subscribers.Range(func(_ uint64, fn func(Event)) bool {
		for _, event := range events {
			fn(event)
		}
		return true
	})
}
