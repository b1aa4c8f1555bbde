// Package urlsync keeps a list's query state and the location's query string in step.
//
// The codec maps a query.State to a canonical query string and back. Facet names and
// the search field are written as-is, the page cursor as page and pageSize. Default
// values are omitted so a fresh list has an empty query string. Parsing never fails:
// unknown parameters are ignored and bad page values are clamped or defaulted, with
// the recovered problems returned for debug logging.
//
// The Synchronizer mounts the codec between a query.Store and a History. It seeds the
// store from the location without writing history and replaces (never pushes) the
// query string after every user change.
package urlsync

import (
	"net/url"
	"strconv"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-resource-list/errkind"
	"github.com/goliatone/go-resource-list/query"
)

const (
	ParamPage     = query.ParamPage
	ParamPageSize = query.ParamPageSize
)

// CodecOptions tune serialization.
type CodecOptions struct {
	// ExplicitPage always writes page and pageSize, even at their defaults.
	ExplicitPage bool
}

// Serialize renders state as a canonical raw query string. Parameters are sorted by
// name.
func Serialize(schema query.Schema, state query.State, opts ...CodecOptions) string {
	schema = schema.WithDefaults()
	var o CodecOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	values := url.Values{}
	for _, name := range state.Filters.Names() {
		if !schema.HasFilter(name) {
			continue
		}
		values.Set(name, state.Filters.Get(name))
	}

	index := state.Page.Index
	if index < 1 {
		index = 1
	}
	if o.ExplicitPage || index != 1 {
		values.Set(ParamPage, strconv.Itoa(index))
	}
	if o.ExplicitPage || state.Page.Size != schema.DefaultPageSize {
		values.Set(ParamPageSize, strconv.Itoa(state.Page.Size))
	}

	return values.Encode()
}

// Parse reads state from a raw query string. It always returns a usable state; the
// second value lists the problems that were recovered from.
func Parse(schema query.Schema, rawQuery string) (query.State, goerrors.ValidationErrors) {
	schema = schema.WithDefaults()
	state := schema.InitialState()

	var problems goerrors.ValidationErrors

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// ParseQuery keeps every pair it could decode.
		problems = append(problems, errkind.Field("query", err.Error(), rawQuery))
	}

	for name, vals := range values {
		if len(vals) == 0 || !schema.HasFilter(name) {
			continue
		}
		if vals[0] != "" {
			state.Filters[name] = vals[0]
		}
	}

	if raw, ok := first(values, ParamPage); ok {
		index, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			problems = append(problems, errkind.Field(ParamPage, "not a number", raw))
		case index < 1:
			problems = append(problems, errkind.Field(ParamPage, "must be at least 1", raw))
		default:
			state.Page.Index = index
		}
	}

	if raw, ok := first(values, ParamPageSize); ok {
		size, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			problems = append(problems, errkind.Field(ParamPageSize, "not a number", raw))
		case !schema.AllowsPageSize(size):
			problems = append(problems, errkind.Field(ParamPageSize, "not an allowed page size", raw))
		default:
			state.Page.Size = size
		}
	}

	return state, problems
}

func first(values url.Values, name string) (string, bool) {
	vals, ok := values[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}
