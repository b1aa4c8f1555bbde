package cache

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-resource-list/query"
)

// Status is the state of the latest request for an entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a copy of the cache's record for one key.
type Entry struct {
	Key query.Key

	// Data is the last successfully fetched result. It stays set while a re-fetch
	// is loading and after a failed one.
	Data    any
	HasData bool

	Status    Status
	Err       error
	FetchedAt time.Time

	// Token identifies the latest request issued for the key.
	Token uint64

	// Revision grows with every change to the entry.
	Revision uint64
}

// FetchFunc loads the result for key from the source of truth.
type FetchFunc func(ctx context.Context, key query.Key) (any, error)

// Predicate selects entries by key.
type Predicate func(query.Key) bool

// ForResource matches every key of the given resource type.
func ForResource(resource string) Predicate {
	prefix := query.ResourcePrefix(resource)
	return func(k query.Key) bool {
		return strings.HasPrefix(k.String(), prefix)
	}
}

// ForKey matches a single key.
func ForKey(key query.Key) Predicate {
	want := key.String()
	return func(k query.Key) bool {
		return k.String() == want
	}
}

// Any matches a key if any of the predicates does.
func Any(predicates ...Predicate) Predicate {
	return func(k query.Key) bool {
		for _, p := range predicates {
			if p != nil && p(k) {
				return true
			}
		}
		return false
	}
}

// EventKind tells what happened to an entry.
type EventKind int

const (
	// EventLoading is sent when a request for the key starts.
	EventLoading EventKind = iota
	// EventUpdated is sent when a request was committed or an entry was restored.
	EventUpdated
	// EventEvicted is sent when an entry was removed by an invalidation or an
	// abandoned fetch.
	EventEvicted
	// EventDropped is sent when an entry was removed to make room for another key.
	// A fetch in flight for the key keeps running and stores its result again.
	EventDropped
	// EventInvalidated is sent once per Invalidate call, after the EventEvicted
	// events of the matched entries. Match is set; Entry is empty. It also reaches
	// holders of keys that were dropped before the invalidation.
	EventInvalidated
)

func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventUpdated:
		return "updated"
	case EventEvicted:
		return "evicted"
	case EventDropped:
		return "dropped"
	case EventInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// Event describes a change to one entry. Entry is the state right after the change.
type Event struct {
	Kind  EventKind
	Entry Entry
	Match Predicate
}
