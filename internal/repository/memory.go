package repository

import (
	"context"
	"sync"
)

// MemoryCarLocker serializes lifecycle operations per car inside one process.
type MemoryCarLocker struct {
	mu    sync.Mutex
	slots map[int64]chan struct{}
}

func NewMemoryCarLocker() *MemoryCarLocker {
	return &MemoryCarLocker{slots: make(map[int64]chan struct{})}
}

func (l *MemoryCarLocker) slot(carID int64) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[carID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[carID] = ch
	}
	return ch
}

// Lock blocks until the car is free or ctx is done.
func (l *MemoryCarLocker) Lock(ctx context.Context, carID int64) (func(), error) {
	ch := l.slot(carID)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}
