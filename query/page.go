package query

import "fmt"

// Reserved query parameters of the page cursor. Filter names may not use them.
const (
	ParamPage     = "page"
	ParamPageSize = "pageSize"
)

// PageSpec is a 1-based page cursor.
type PageSpec struct {
	Index int
	Size  int
}

// Offset returns the number of items before the first item of the page.
func (p PageSpec) Offset() int {
	if p.Index < 1 {
		return 0
	}
	return (p.Index - 1) * p.Size
}

// LastPage returns the last valid page index for total items. It is never below 1.
func (p PageSpec) LastPage(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 1
	}
	return (total + p.Size - 1) / p.Size
}

// OutOfRange reports whether the page starts past total items. Page 1 is always in
// range.
func (p PageSpec) OutOfRange(total int) bool {
	return p.Index > 1 && p.Offset() >= total
}

func (p PageSpec) String() string {
	return fmt.Sprintf("page %d (size %d)", p.Index, p.Size)
}

// State is the complete state of one list query.
type State struct {
	Filters FilterSet
	Page    PageSpec
}

// Equal compares filters by their normalized form and pages by value.
func (s State) Equal(other State) bool {
	return s.Page == other.Page && s.Filters.Equal(other.Filters)
}

// Clone returns a copy with normalized filters.
func (s State) Clone() State {
	return State{Filters: s.Filters.Normalize(), Page: s.Page}
}
