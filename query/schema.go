package query

import (
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// DefaultPageSizes are used when a Schema does not declare any.
var DefaultPageSizes = []int{10, 20, 50, 100}

// DefaultPageSize is used when a Schema does not declare one.
const DefaultPageSize = 10

// Schema describes the query surface of one resource type.
type Schema struct {
	// Resource is the resource type, e.g. "members". It is normalized with
	// NormalizeResource.
	Resource string

	// Filters lists the facet names in display order. SearchField is always
	// accepted and must not be listed, nor may ParamPage or ParamPageSize.
	Filters []string

	// PageSizes is the allowed page size set.
	PageSizes []int

	// DefaultPageSize must be one of PageSizes.
	DefaultPageSize int
}

// WithDefaults fills empty page settings and normalizes the resource name.
func (s Schema) WithDefaults() Schema {
	out := s
	out.Resource = NormalizeResource(s.Resource)
	if len(out.PageSizes) == 0 {
		out.PageSizes = slices.Clone(DefaultPageSizes)
	}
	if out.DefaultPageSize == 0 {
		if slices.Contains(out.PageSizes, DefaultPageSize) {
			out.DefaultPageSize = DefaultPageSize
		} else {
			out.DefaultPageSize = out.PageSizes[0]
		}
	}
	return out
}

var notBlank = validation.NewStringRule(func(v string) bool {
	return strings.TrimSpace(v) != ""
}, "must not be blank")

// Validate checks the schema.
func (s Schema) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Resource, validation.Required),
		validation.Field(&s.Filters, validation.Each(
			validation.Required,
			notBlank,
			validation.NotIn(ParamPage, ParamPageSize, SearchField).Error("is a reserved parameter name"),
		)),
		validation.Field(&s.PageSizes, validation.Required, validation.Each(validation.Required, validation.Min(1))),
		validation.Field(&s.DefaultPageSize, validation.Required, validation.In(toAny(s.PageSizes)...)),
	)
}

// AllowsPageSize reports whether size is in the allowed set.
func (s Schema) AllowsPageSize(size int) bool {
	return slices.Contains(s.PageSizes, size)
}

// HasFilter reports whether name is a known filter, SearchField included.
func (s Schema) HasFilter(name string) bool {
	return name == SearchField || slices.Contains(s.Filters, name)
}

// InitialState is the state with no filters on page 1 at the default page size.
func (s Schema) InitialState() State {
	return State{Filters: FilterSet{}, Page: PageSpec{Index: 1, Size: s.DefaultPageSize}}
}

func toAny(values []int) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
