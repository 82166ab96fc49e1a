package storage

import (
	"context"
	"sync"
)

// Memory is a volatile Storage.
type Memory struct {
	values map[string][]byte
	lock   sync.RWMutex
}

func NewMemory() *Memory {
	return &Memory{values: map[string][]byte{}}
}

// Get implements the Storage interface.
func (mem *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	mem.lock.RLock()
	defer mem.lock.RUnlock()
	v, ok := mem.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements the Storage interface.
func (mem *Memory) Set(ctx context.Context, key string, value []byte) error {
	mem.lock.Lock()
	defer mem.lock.Unlock()
	mem.values[key] = append([]byte(nil), value...)
	return nil
}

// Close implements the Storage interface.
func (mem *Memory) Close() error {
	return nil
}
