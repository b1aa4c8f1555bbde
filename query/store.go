package query

import (
	"sort"
	"sync"

	"github.com/goliatone/go-resource-list/errkind"
)

// Origin tells subscribers where a change came from.
type Origin int

const (
	// OriginUser is a change made through the store's mutators.
	OriginUser Origin = iota
	// OriginURL is a change seeded from the location, which must not be written back.
	OriginURL
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginURL:
		return "url"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after every effective state change.
type Change struct {
	State  State
	Origin Origin
}

// Store holds the filters and page of one list.
type Store struct {
	mu          sync.Mutex
	schema      Schema
	state       State
	subscribers map[int]func(Change)
	nextID      int
}

// NewStore creates a store in the schema's initial state.
func NewStore(schema Schema) *Store {
	schema = schema.WithDefaults()
	return &Store{
		schema:      schema,
		state:       schema.InitialState(),
		subscribers: make(map[int]func(Change)),
	}
}

// Schema returns the schema the store was created with, defaults applied.
func (s *Store) Schema() Schema {
	return s.schema
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn for change notifications. Notifications are delivered
// synchronously on the goroutine that made the change, after the store lock is
// released.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// SetFilter merges partial into the filters and resets the page index to 1. It
// returns false and notifies nobody when the filters do not change.
func (s *Store) SetFilter(partial FilterSet) bool {
	return s.update(OriginUser, func(current State) State {
		filters := current.Filters.Merge(partial)
		if filters.Equal(current.Filters) {
			return current
		}
		return State{Filters: filters, Page: PageSpec{Index: 1, Size: current.Page.Size}}
	})
}

// ResetFilters clears every filter, keeping the page size.
func (s *Store) ResetFilters() bool {
	return s.update(OriginUser, func(current State) State {
		if current.Filters.IsEmpty() {
			return current
		}
		return State{Filters: FilterSet{}, Page: PageSpec{Index: 1, Size: current.Page.Size}}
	})
}

// SetPage replaces the page cursor. An index below 1 is clamped to 1; a size outside
// the schema's allowed set is rejected.
func (s *Store) SetPage(page PageSpec) (bool, error) {
	if !s.schema.AllowsPageSize(page.Size) {
		return false, errkind.Validation("invalid page",
			errkind.Field("pageSize", "not an allowed page size", page.Size))
	}
	if page.Index < 1 {
		page.Index = 1
	}

	return s.update(OriginUser, func(current State) State {
		return State{Filters: current.Filters, Page: page}
	}), nil
}

// SetPageIndex moves to index, keeping the page size.
func (s *Store) SetPageIndex(index int) bool {
	if index < 1 {
		index = 1
	}
	return s.update(OriginUser, func(current State) State {
		return State{Filters: current.Filters, Page: PageSpec{Index: index, Size: current.Page.Size}}
	})
}

// SetPageSize changes the page size, keeping the page index.
func (s *Store) SetPageSize(size int) (bool, error) {
	s.mu.Lock()
	index := s.state.Page.Index
	s.mu.Unlock()

	return s.SetPage(PageSpec{Index: index, Size: size})
}

// Seed replaces the whole state with one parsed from the location. Subscribers see
// OriginURL.
func (s *Store) Seed(state State) bool {
	state = state.Clone()
	if state.Page.Index < 1 {
		state.Page.Index = 1
	}
	if !s.schema.AllowsPageSize(state.Page.Size) {
		state.Page.Size = s.schema.DefaultPageSize
	}

	return s.update(OriginURL, func(State) State {
		return state
	})
}

func (s *Store) update(origin Origin, fn func(State) State) bool {
	s.mu.Lock()
	current := s.state
	next := fn(current)
	if next.Equal(current) {
		s.mu.Unlock()
		return false
	}
	s.state = next.Clone()
	change := Change{State: s.state.Clone(), Origin: origin}
	subscribers := s.snapshotSubscribersLocked()
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(change)
	}
	return true
}

// snapshotSubscribersLocked returns subscribers in registration order.
func (s *Store) snapshotSubscribersLocked() []func(Change) {
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(Change), len(ids))
	for i, id := range ids {
		out[i] = s.subscribers[id]
	}
	return out
}
