package storage

import (
	"context"
	"sync"
)

// MemoryStorage is an in-process Storage. SetExternal simulates a write by
// another process so Watch subscribers can be exercised in tests.
type MemoryStorage struct {
	mu       sync.Mutex
	values   map[string]string
	watchers []chan string
	closed   bool
}

// NewMemory returns an empty MemoryStorage.
func NewMemory() *MemoryStorage {
	return &MemoryStorage{values: map[string]string{}}
}

// Get implements Storage.
func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.values[key] = value
	return nil
}

// Delete implements Storage.
func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.values, key)
	return nil
}

// Close implements Storage.
func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetExternal stores value and notifies watchers, as if another process
// had written it.
func (m *MemoryStorage) SetExternal(key, value string) {
	m.mu.Lock()
	m.values[key] = value
	watchers := append([]chan string(nil), m.watchers...)
	m.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- key:
		default:
		}
	}
}

// Watch implements Watcher.
func (m *MemoryStorage) Watch(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 16)
	m.mu.Lock()
	m.watchers = append(m.watchers, ch)
	m.mu.Unlock()

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer m.unwatch(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case key := <-ch:
				select {
				case out <- key:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *MemoryStorage) unwatch(ch chan string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, w := range m.watchers {
		if w == ch {
			m.watchers = append(m.watchers[:i], m.watchers[i+1:]...)
			return
		}
	}
}
