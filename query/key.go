package query

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// KeySeparator defines the delimiter used between key segments.
const KeySeparator = "::"

// Key identifies one fetchable view: resource type, filters and page.
type Key struct {
	Resource string
	Filters  FilterSet
	Page     PageSpec
}

// NewKey builds a key with a normalized resource name and a normalized copy of filters.
func NewKey(resource string, filters FilterSet, page PageSpec) Key {
	return Key{
		Resource: NormalizeResource(resource),
		Filters:  filters.Normalize(),
		Page:     page,
	}
}

// KeyFor builds the key for state under schema.
func KeyFor(schema Schema, state State) Key {
	return NewKey(schema.Resource, state.Filters, state.Page)
}

// String returns the canonical form of the key, used as the cache index.
func (k Key) String() string {
	return serializeKey(k.Resource, k.Filters, k.Page.Index, k.Page.Size)
}

// Equal reports whether both keys have the same canonical form.
func (k Key) Equal(other Key) bool {
	return k.String() == other.String()
}

// IsZero reports whether the key was never set.
func (k Key) IsZero() bool {
	return k.Resource == "" && len(k.Filters) == 0 && k.Page == PageSpec{}
}

// ResourcePrefix returns the prefix shared by every key of resource.
func ResourcePrefix(resource string) string {
	return NormalizeResource(resource) + KeySeparator
}

// serializeKey joins the resource and the serialized args with KeySeparator.
func serializeKey(resource string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, resource)
	for _, arg := range args {
		parts = append(parts, serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

// serializeValue renders the argument types a key is built from.
func serializeValue(v any) string {
	switch value := v.(type) {
	case nil:
		return "nil"
	case string:
		return url.QueryEscape(value)
	case int:
		return strconv.Itoa(value)
	case FilterSet:
		return serializeFilters(value)
	case map[string]string:
		return serializeFilters(FilterSet(value))
	default:
		return "unsupported"
	}
}

// serializeFilters renders name=value pairs sorted by name for deterministic output.
// Names and values are query-escaped so separators inside values cannot collide.
func serializeFilters(f FilterSet) string {
	if len(f) == 0 {
		return "filters:{}"
	}

	names := make([]string, 0, len(f))
	for name, value := range f {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = url.QueryEscape(name) + "=" + url.QueryEscape(f[name])
	}

	return "filters:{" + strings.Join(pairs, ",") + "}"
}
