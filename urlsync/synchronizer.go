package urlsync

import (
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-resource-list/debounce"
	"github.com/goliatone/go-resource-list/pkg/clock"
	"github.com/goliatone/go-resource-list/query"
)

// History is the location the list state is mirrored to. Implementations replace the
// current entry; the synchronizer never pushes entries.
type History interface {
	Query() string
	ReplaceQuery(rawQuery string)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithCoalesce delays history writes until edits settle for d. A burst of edits then
// produces one replace carrying the final state.
func WithCoalesce(d time.Duration) Option {
	return func(s *Synchronizer) {
		s.coalesce = d
	}
}

// WithClock sets the time source used for coalescing.
func WithClock(c clock.Clock) Option {
	return func(s *Synchronizer) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. Recovered parse problems are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCodecOptions sets the serialization options.
func WithCodecOptions(o CodecOptions) Option {
	return func(s *Synchronizer) {
		s.codec = o
	}
}

// Synchronizer mirrors a query.Store into a History.
type Synchronizer struct {
	store    *query.Store
	history  History
	schema   query.Schema
	codec    CodecOptions
	clock    clock.Clock
	logger   *zap.Logger
	coalesce time.Duration

	debouncer   *debounce.Debouncer[query.State]
	unsubscribe func()

	// mu serializes history writes so the location always ends on the latest state.
	mu          sync.Mutex
	lastWritten string
	closed      bool
}

// Mount seeds store from the history's current query string without writing history,
// then replaces the query string after every user change to the store.
func Mount(store *query.Store, history History, schema query.Schema, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:   store,
		history: history,
		schema:  schema.WithDefaults(),
		clock:   clock.Real(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.coalesce > 0 {
		s.debouncer = debounce.New(s.coalesce, s.write, debounce.WithClock(s.clock))
	}

	s.seed()
	s.unsubscribe = store.Subscribe(s.onChange)
	return s
}

// Navigated re-reads the location after back/forward navigation and seeds the store
// from it. Nothing is written back.
func (s *Synchronizer) Navigated() {
	if s.debouncer != nil {
		s.debouncer.Cancel()
	}
	s.seed()
}

// Flush writes a pending coalesced state immediately.
func (s *Synchronizer) Flush() {
	if s.debouncer != nil {
		s.debouncer.Flush()
	}
}

// Close stops mirroring and drops any pending coalesced write.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.debouncer != nil {
		s.debouncer.Close()
	}
}

func (s *Synchronizer) seed() {
	raw := s.history.Query()
	state, problems := Parse(s.schema, raw)
	if len(problems) > 0 {
		s.logProblems(raw, problems)
	}

	s.mu.Lock()
	s.lastWritten = Serialize(s.schema, state, s.codec)
	s.mu.Unlock()

	s.store.Seed(state)
}

func (s *Synchronizer) onChange(change query.Change) {
	if change.Origin != query.OriginUser {
		return
	}
	if s.debouncer != nil {
		s.debouncer.Push(change.State)
		return
	}
	s.write(change.State)
}

func (s *Synchronizer) write(state query.State) {
	rawQuery := Serialize(s.schema, state, s.codec)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || rawQuery == s.lastWritten {
		return
	}
	s.lastWritten = rawQuery
	s.history.ReplaceQuery(rawQuery)
}

func (s *Synchronizer) logProblems(raw string, problems goerrors.ValidationErrors) {
	s.logger.Debug("recovered malformed list query",
		zap.String("resource", s.schema.Resource),
		zap.String("query", raw),
		zap.Error(problems),
	)
}
