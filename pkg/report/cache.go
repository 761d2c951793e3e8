package report

import "sync"

// YearCache keeps one value per fiscal year. Entries never expire; they are removed only by
// Invalidate or InvalidateAll.
type YearCache[T any] struct {
	mu      sync.RWMutex
	entries map[int]T
}

func NewYearCache[T any]() *YearCache[T] {
	return &YearCache[T]{entries: make(map[int]T)}
}

func (c *YearCache[T]) Get(year int) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.entries[year]
	return value, ok
}

func (c *YearCache[T]) Set(year int, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[year] = value
}

func (c *YearCache[T]) Contains(year int) bool {
	_, ok := c.Get(year)
	return ok
}

func (c *YearCache[T]) Invalidate(year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, year)
}

func (c *YearCache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]T)
}

func (c *YearCache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
