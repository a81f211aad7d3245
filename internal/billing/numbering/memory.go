package numbering

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"billing/internal/billing/models"
)

// MemoryAllocator keeps one counter per year behind a mutex.
type MemoryAllocator struct {
	mu     sync.Mutex
	source NumberSource
	last   map[int]int64
}

func NewMemory(source NumberSource) *MemoryAllocator {
	return &MemoryAllocator{source: source, last: make(map[int]int64)}
}

func (a *MemoryAllocator) Next(ctx context.Context, year int) (models.InvoiceNumber, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, ok := a.last[year]
	if !ok {
		seeded, err := seed(ctx, a.source, year)
		if err != nil {
			return "", fmt.Errorf("seed invoice counter for %d: %w", year, err)
		}
		current = seeded
	}
	current++
	a.last[year] = current
	return models.FormatInvoiceNumber(year, current), nil
}

// Snapshot captures the counters and returns a func restoring them, so a
// rolled-back unit of work gives its number back.
func (a *MemoryAllocator) Snapshot() func() {
	a.mu.Lock()
	saved := maps.Clone(a.last)
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		a.last = saved
		a.mu.Unlock()
	}
}
