// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package stackedmap provides a map with nested, revocable levels.
package stackedmap

// StackedMap keeps maps in a stack. Each level inherits the entries of the
// levels below it and falls back to src when no level holds a key.
type StackedMap[K comparable, V any] struct {
	src       MapGetter[K, V]
	levels    []*level[K, V]
	revisions map[K][]int // key -> indexes of levels holding it, ascending
}

type level[K comparable, V any] struct {
	kvs     map[K]V
	journal []JournalEntry[K, V]
}

func newLevel[K comparable, V any]() *level[K, V] {
	return &level[K, V]{kvs: make(map[K]V)}
}

// JournalEntry records one Put.
type JournalEntry[K comparable, V any] struct {
	Key   K
	Value V
}

// MapGetter loads a key from the underlying source.
type MapGetter[K comparable, V any] func(key K) (value V, exist bool, err error)

// New creates a StackedMap with one level already pushed.
func New[K comparable, V any](src MapGetter[K, V]) *StackedMap[K, V] {
	sm := &StackedMap[K, V]{
		src:       src,
		revisions: make(map[K][]int),
	}
	sm.Push()
	return sm
}

// Depth returns the number of levels.
func (sm *StackedMap[K, V]) Depth() int {
	return len(sm.levels)
}

// Push pushes a new level and returns the depth before the push.
func (sm *StackedMap[K, V]) Push() int {
	sm.levels = append(sm.levels, newLevel[K, V]())
	return len(sm.levels) - 1
}

// Pop drops the top level, reverting every Put made since the matching Push.
func (sm *StackedMap[K, V]) Pop() {
	top := len(sm.levels) - 1
	for key := range sm.levels[top].kvs {
		revs := sm.revisions[key]
		revs = revs[:len(revs)-1]
		if len(revs) == 0 {
			delete(sm.revisions, key)
		} else {
			sm.revisions[key] = revs
		}
	}
	sm.levels[top] = nil
	sm.levels = sm.levels[:top]
}

// PopTo pops levels until the depth equals depth.
func (sm *StackedMap[K, V]) PopTo(depth int) {
	for len(sm.levels) > depth {
		sm.Pop()
	}
}

// Squash folds every level at index >= depth into the level below it,
// keeping their writes but forgetting the boundaries. depth must be >= 1.
func (sm *StackedMap[K, V]) Squash(depth int) {
	if depth < 1 || depth >= len(sm.levels) {
		return
	}
	var journal []JournalEntry[K, V]
	for _, lvl := range sm.levels[depth:] {
		journal = append(journal, lvl.journal...)
	}
	sm.PopTo(depth)
	for _, e := range journal {
		sm.Put(e.Key, e.Value)
	}
}

// Get returns the value of key. The bool reports whether it was found.
func (sm *StackedMap[K, V]) Get(key K) (V, bool, error) {
	if revs, ok := sm.revisions[key]; ok {
		return sm.levels[revs[len(revs)-1]].kvs[key], true, nil
	}
	return sm.src(key)
}

// Put stores key at the top level. It panics when the stack is empty.
func (sm *StackedMap[K, V]) Put(key K, value V) {
	top := len(sm.levels) - 1
	lvl := sm.levels[top]
	if _, ok := lvl.kvs[key]; !ok {
		sm.revisions[key] = append(sm.revisions[key], top)
	}
	lvl.kvs[key] = value
	lvl.journal = append(lvl.journal, JournalEntry[K, V]{Key: key, Value: value})
}

// Journal returns every Put in order, oldest first.
func (sm *StackedMap[K, V]) Journal() []JournalEntry[K, V] {
	var j []JournalEntry[K, V]
	for _, lvl := range sm.levels {
		j = append(j, lvl.journal...)
	}
	return j
}
