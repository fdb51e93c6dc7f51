// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package snapshot keeps a stack of captured node versions.
package snapshot

import (
	"sort"
	"sync"
)

// Manager hands out strictly increasing ids for captured values. Reverting
// to an id consumes it together with every id taken after it.
type Manager[T any] struct {
	mu      sync.Mutex
	lastID  uint64
	entries []entry[T] // ascending by id
}

type entry[T any] struct {
	id    uint64
	value T
}

// New creates an empty manager.
func New[T any]() *Manager[T] {
	return &Manager[T]{}
}

// Take records value and returns its id. Ids start at 1 and never repeat.
func (m *Manager[T]) Take(value T) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastID++
	m.entries = append(m.entries, entry[T]{m.lastID, value})
	return m.lastID
}

// Revert returns the value captured as id and invalidates id and every
// later id. An unknown id fails without side effects.
func (m *Manager[T]) Revert(id uint64) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].id >= id })
	if i == len(m.entries) || m.entries[i].id != id {
		var zero T
		return zero, false
	}
	value := m.entries[i].value
	clear(m.entries[i:])
	m.entries = m.entries[:i]
	return value, true
}

// Len returns the number of valid ids.
func (m *Manager[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// IDs returns the valid ids in ascending order.
func (m *Manager[T]) IDs() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]uint64, 0, len(m.entries))
	for _, e := range m.entries {
		ids = append(ids, e.id)
	}
	return ids
}

// Clear invalidates every id. Ids keep increasing afterwards.
func (m *Manager[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
	m.entries = m.entries[:0]
}
