// Package memo provides compute-once cache cells used by every lazily built
// value in stratum: member indexes, per-name function lists and aggregated
// descriptor sets.
//
// A computation runs at most once. Its result, including a returned error,
// is cached and handed to every caller, so a fault is never retried.
package memo

import (
	"errors"
	"fmt"
	"sync"
)

// ErrPanicked is cached in place of a value whose computation panicked.
var ErrPanicked = errors.New("memo: computation panicked")

// Cell holds a single lazily computed value.
type Cell[T any] struct {
	once sync.Once
	fn   func() (T, error)
	val  T
	err  error
}

// NewCell returns a Cell that computes its value with fn on first Get.
func NewCell[T any](fn func() (T, error)) *Cell[T] {
	return &Cell[T]{fn: fn}
}

// Get returns the cached value, computing it on the first call. Concurrent
// first callers block until the single computation finishes. A panic in the
// computation is cached as an ErrPanicked error.
func (c *Cell[T]) Get() (T, error) {
	c.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				c.val, c.err = zero, fmt.Errorf("%w: %v", ErrPanicked, r)
			}
			c.fn = nil
		}()
		c.val, c.err = c.fn()
	})
	return c.val, c.err
}

// Map memoizes a keyed computation. Each key owns its own Cell, so a slow or
// failing computation for one key never blocks or poisons another.
type Map[K comparable, V any] struct {
	fn    func(K) (V, error)
	mu    sync.RWMutex
	cells map[K]*Cell[V]
}

// NewMap returns a Map that computes missing keys with fn.
func NewMap[K comparable, V any](fn func(K) (V, error)) *Map[K, V] {
	return &Map[K, V]{
		fn:    fn,
		cells: make(map[K]*Cell[V]),
	}
}

// Get returns the value for key, computing it at most once.
func (m *Map[K, V]) Get(key K) (V, error) {
	return m.cell(key).Get()
}

// Len reports how many keys have been requested so far.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cells)
}

func (m *Map[K, V]) cell(key K) *Cell[V] {
	m.mu.RLock()
	c, ok := m.cells[key]
	m.mu.RUnlock()
	if ok {
		return c
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cells[key]; ok {
		return c
	}
	c = NewCell(func() (V, error) { return m.fn(key) })
	m.cells[key] = c
	return c
}
