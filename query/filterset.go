package query

import (
	"maps"
	"slices"
)

// SearchField is the filter name of the free-text search.
const SearchField = "search"

// FilterSet maps filter names to values. An empty value means the filter is not set.
type FilterSet map[string]string

// Normalize returns a copy without empty entries. It never returns nil.
func (f FilterSet) Normalize() FilterSet {
	out := make(FilterSet, len(f))
	for name, value := range f {
		if name == "" || value == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// Merge returns a normalized copy of f with partial applied on top. An empty value in
// partial clears that filter.
func (f FilterSet) Merge(partial FilterSet) FilterSet {
	out := f.Normalize()
	for name, value := range partial {
		if name == "" {
			continue
		}
		if value == "" {
			delete(out, name)
			continue
		}
		out[name] = value
	}
	return out
}

// Equal compares the normalized forms of f and other.
func (f FilterSet) Equal(other FilterSet) bool {
	return maps.Equal(f.Normalize(), other.Normalize())
}

// Get returns the value of name, empty when unset.
func (f FilterSet) Get(name string) string {
	return f[name]
}

// Search returns the free-text search value.
func (f FilterSet) Search() string {
	return f[SearchField]
}

// Names returns the set filter names in sorted order.
func (f FilterSet) Names() []string {
	names := make([]string, 0, len(f))
	for name, value := range f {
		if value != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// IsEmpty reports whether no filter is set.
func (f FilterSet) IsEmpty() bool {
	for _, value := range f {
		if value != "" {
			return false
		}
	}
	return true
}
