package memory

import (
	"context"
	"sync"
)

// IdAllocator hands out sequential ids per table key starting at 1.
type IdAllocator struct {
	mu   sync.Mutex
	next map[string]int64
}

// NewIdAllocator creates an allocator with every sequence at zero
func NewIdAllocator() *IdAllocator {
	return &IdAllocator{next: make(map[string]int64)}
}

func (a *IdAllocator) Next(ctx context.Context, tableKey string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next[tableKey]++
	return a.next[tableKey], nil
}
