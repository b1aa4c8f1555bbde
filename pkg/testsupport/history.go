package testsupport

import "sync"

// MemoryHistory is an in-memory location whose query string can be read and
// replaced. It records every replace so tests can count history writes.
type MemoryHistory struct {
	mu       sync.Mutex
	query    string
	replaced []string
}

// NewMemoryHistory starts at the given raw query string.
func NewMemoryHistory(rawQuery string) *MemoryHistory {
	return &MemoryHistory{query: rawQuery}
}

// Query returns the current raw query string.
func (h *MemoryHistory) Query() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.query
}

// ReplaceQuery replaces the current entry's query string.
func (h *MemoryHistory) ReplaceQuery(rawQuery string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.query = rawQuery
	h.replaced = append(h.replaced, rawQuery)
}

// Navigate simulates back/forward navigation to rawQuery. It is not a replace.
func (h *MemoryHistory) Navigate(rawQuery string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.query = rawQuery
}

// Replaced returns every query string written with ReplaceQuery.
func (h *MemoryHistory) Replaced() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.replaced...)
}
