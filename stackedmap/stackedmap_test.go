// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vechain/devnode/stackedmap"
)

func M(a ...any) []any {
	return a
}

func TestStackedMap(t *testing.T) {
	assert := assert.New(t)
	src := map[string]string{"foo": "bar"}

	sm := stackedmap.New(func(key string) (string, bool, error) {
		v, ok := src[key]
		return v, ok, nil
	})

	tests := []struct {
		f         func()
		depth     int
		putKey    string
		putValue  string
		getKey    string
		getReturn []any
	}{
		{func() {}, 1, "", "", "foo", M("bar", true, nil)},
		{func() { sm.Push() }, 2, "foo", "baz", "foo", M("baz", true, nil)},
		{func() {}, 2, "foo", "baz1", "foo", M("baz1", true, nil)},
		{func() { sm.Push() }, 3, "foo", "qux", "foo", M("qux", true, nil)},
		{func() { sm.Pop() }, 2, "", "", "foo", M("baz1", true, nil)},
		{func() { sm.Pop() }, 1, "", "", "foo", M("bar", true, nil)},
		{func() {}, 1, "", "", "nope", M("", false, nil)},
		{func() { sm.Push(); sm.Push() }, 3, "", "", "", nil},
		{func() { sm.PopTo(1) }, 1, "", "", "", nil},
	}

	for _, test := range tests {
		test.f()
		assert.Equal(test.depth, sm.Depth())
		if test.putKey != "" {
			sm.Put(test.putKey, test.putValue)
		}
		if test.getKey != "" {
			v, ok, err := sm.Get(test.getKey)
			assert.Equal(test.getReturn, M(v, ok, err))
		}
	}
}

func TestRepeatedPutThenPop(t *testing.T) {
	sm := stackedmap.New(func(string) (int, bool, error) { return 0, false, nil })

	sm.Push()
	sm.Put("a", 1)
	sm.Put("a", 2)
	sm.Pop()

	_, ok, err := sm.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSquash(t *testing.T) {
	sm := stackedmap.New(func(string) (int, bool, error) { return 0, false, nil })
	sm.Put("base", 1)

	outer := sm.Push()
	sm.Put("a", 1)
	inner := sm.Push()
	sm.Put("a", 2)
	sm.Put("b", 3)

	sm.Squash(inner)
	assert.Equal(t, inner, sm.Depth())
	v, ok, _ := sm.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	// squashed writes still belong to the outer level
	sm.PopTo(outer)
	_, ok, _ = sm.Get("a")
	assert.False(t, ok)
	_, ok, _ = sm.Get("b")
	assert.False(t, ok)
	v, _, _ = sm.Get("base")
	assert.Equal(t, 1, v)
}

func TestJournal(t *testing.T) {
	sm := stackedmap.New(func(string) (int, bool, error) { return 0, false, nil })
	sm.Put("a", 1)
	sm.Push()
	sm.Put("b", 2)
	sm.Put("a", 3)

	assert.Equal(t, []stackedmap.JournalEntry[string, int]{
		{Key: "a", Value: 1},
		{Key: "b", Value: 2},
		{Key: "a", Value: 3},
	}, sm.Journal())
}

func TestSourceError(t *testing.T) {
	boom := errors.New("boom")
	sm := stackedmap.New(func(string) (int, bool, error) { return 0, false, boom })

	_, _, err := sm.Get("x")
	assert.Equal(t, boom, err)

	sm.Put("x", 1)
	v, ok, err := sm.Get("x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
