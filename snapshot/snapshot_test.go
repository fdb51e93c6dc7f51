// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakeRevert(t *testing.T) {
	m := New[string]()

	a := m.Take("a")
	b := m.Take("b")
	c := m.Take("c")
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{a, b, c})

	v, ok := m.Revert(b)
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, []uint64{a}, m.IDs())

	// later and consumed ids are gone
	_, ok = m.Revert(c)
	assert.False(t, ok)
	_, ok = m.Revert(b)
	assert.False(t, ok)

	v, ok = m.Revert(a)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 0, m.Len())
}

func TestRevertUnknownHasNoEffect(t *testing.T) {
	m := New[int]()
	m.Take(10)
	m.Take(20)

	for _, id := range []uint64{0, 3, 100} {
		_, ok := m.Revert(id)
		assert.False(t, ok)
	}
	assert.Equal(t, []uint64{1, 2}, m.IDs())
}

func TestIDsNeverRepeat(t *testing.T) {
	m := New[int]()
	first := m.Take(1)
	_, ok := m.Revert(first)
	assert.True(t, ok)

	second := m.Take(2)
	assert.Greater(t, second, first)

	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, uint64(3), m.Take(3))
}
