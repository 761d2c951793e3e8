package tablestore

import (
	"context"
	"sync"
)

// MemoryClient keeps tables in process memory. Errors can be injected per table and every call is
// counted, which makes it the store of choice for tests and for running the service without a backend.
type MemoryClient struct {
	mu         sync.RWMutex
	tables     map[string][]Row
	findErrors map[string]error
	addErrors  map[string]error
	findCalls  map[string]int
	addCalls   map[string]int
}

var _ Client = (*MemoryClient)(nil)

func NewMemoryClient() *MemoryClient {
	return &MemoryClient{
		tables:     make(map[string][]Row),
		findErrors: make(map[string]error),
		addErrors:  make(map[string]error),
		findCalls:  make(map[string]int),
		addCalls:   make(map[string]int),
	}
}

func (c *MemoryClient) Find(_ context.Context, table string, filter Filter) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.findCalls[table]++
	if err := c.findErrors[table]; err != nil {
		return nil, err
	}

	result := make([]Row, 0)
	for _, row := range c.tables[table] {
		if filter.Matches(row) {
			result = append(result, row.Clone())
		}
	}
	return result, nil
}

func (c *MemoryClient) Add(_ context.Context, table string, rows []Row) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.addCalls[table]++
	if err := c.addErrors[table]; err != nil {
		return err
	}
	for _, row := range rows {
		c.tables[table] = append(c.tables[table], row.Clone())
	}
	return nil
}

func (c *MemoryClient) SetFindError(table string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findErrors[table] = err
}

func (c *MemoryClient) SetAddError(table string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addErrors[table] = err
}

func (c *MemoryClient) Rows(table string) []Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([]Row, 0, len(c.tables[table]))
	for _, row := range c.tables[table] {
		rows = append(rows, row.Clone())
	}
	return rows
}

func (c *MemoryClient) FindCalls(table string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findCalls[table]
}

func (c *MemoryClient) AddCalls(table string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addCalls[table]
}

func (c *MemoryClient) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string][]Row)
	c.findErrors = make(map[string]error)
	c.addErrors = make(map[string]error)
	c.findCalls = make(map[string]int)
	c.addCalls = make(map[string]int)
}
