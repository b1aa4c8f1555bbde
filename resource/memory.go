package resource

import (
	"context"
	"slices"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-resource-list/cache"
	"github.com/goliatone/go-resource-list/query"
)

// Identity reads and assigns the ID of a record.
type Identity[T any] struct {
	Get func(T) string
	Set func(T, string) T
}

// Matcher reports whether a record passes filters.
type Matcher[T any] func(record T, filters query.FilterSet) bool

// MemoryRepository is an in-process Repository, for demos and tests. Records keep
// insertion order.
type MemoryRepository[T any] struct {
	mu      sync.RWMutex
	records []T
	id      Identity[T]
	match   Matcher[T]
}

// NewMemoryRepository creates a repository holding records. A nil match accepts
// every record.
func NewMemoryRepository[T any](id Identity[T], match Matcher[T], records ...T) *MemoryRepository[T] {
	if match == nil {
		match = func(T, query.FilterSet) bool { return true }
	}
	return &MemoryRepository[T]{
		records: slices.Clone(records),
		id:      id,
		match:   match,
	}
}

func (r *MemoryRepository[T]) List(ctx context.Context, key query.Key) (cache.ResultPage[T], error) {
	if err := ctx.Err(); err != nil {
		return cache.ResultPage[T]{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []T
	for _, rec := range r.records {
		if r.match(rec, key.Filters) {
			matched = append(matched, rec)
		}
	}

	start := min(key.Page.Offset(), len(matched))
	end := min(start+key.Page.Size, len(matched))
	return cache.ResultPage[T]{Items: slices.Clone(matched[start:end]), Total: len(matched)}, nil
}

func (r *MemoryRepository[T]) GetByID(_ context.Context, id string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexLocked(id); i >= 0 {
		return r.records[i], nil
	}
	var zero T
	return zero, notFound(id)
}

func (r *MemoryRepository[T]) Create(_ context.Context, record T) (T, error) {
	if r.id.Get(record) == "" {
		record = r.id.Set(record, uuid.NewString())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(r.id.Get(record)) >= 0 {
		var zero T
		return zero, goerrors.New("record already exists", goerrors.CategoryConflict).
			WithMetadata(map[string]any{"id": r.id.Get(record)})
	}
	r.records = append(r.records, record)
	return record, nil
}

func (r *MemoryRepository[T]) Update(_ context.Context, id string, record T) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		var zero T
		return zero, notFound(id)
	}
	record = r.id.Set(record, id)
	r.records[i] = record
	return record, nil
}

func (r *MemoryRepository[T]) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		return notFound(id)
	}
	r.records = slices.Delete(r.records, i, i+1)
	return nil
}

// Len returns the number of records.
func (r *MemoryRepository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *MemoryRepository[T]) indexLocked(id string) int {
	return slices.IndexFunc(r.records, func(rec T) bool { return r.id.Get(rec) == id })
}

func notFound(id string) error {
	return goerrors.New("record not found", goerrors.CategoryNotFound).
		WithMetadata(map[string]any{"id": id})
}
