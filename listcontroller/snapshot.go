package listcontroller

import "github.com/goliatone/go-resource-list/query"

// Status is the lifecycle state of a list.
type Status int

const (
	// StatusIdle is the state before Mount.
	StatusIdle Status = iota
	// StatusLoading means a fetch for the current key is in flight.
	StatusLoading
	// StatusReady means the current key's data is shown.
	StatusReady
	// StatusFailed means the last fetch for the current key failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is what a presentation layer renders. Items must be treated as read-only;
// the slice is shared with the cache.
type Snapshot[T any] struct {
	Items []T
	Total int

	Loading bool
	Err     error
	Status  Status

	// Placeholder is set when Items and Total belong to the previously shown key
	// because the current one has no data yet.
	Placeholder bool

	Filters query.FilterSet
	Page    query.PageSpec

	// SearchInput is the latest text passed to SetSearch, which may not have been
	// applied to Filters yet.
	SearchInput string
}

// LastPage returns the last valid page index for the snapshot's total.
func (s Snapshot[T]) LastPage() int {
	return s.Page.LastPage(s.Total)
}
