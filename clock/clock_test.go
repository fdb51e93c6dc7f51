// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixed(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestNextFollowsWallClock(t *testing.T) {
	c := New(Options{Now: fixed(1000)})

	ts, clamped := c.Next(900)
	assert.Equal(t, uint64(1000), ts)
	assert.False(t, clamped)

	// never at or before the parent
	ts, clamped = c.Next(1000)
	assert.Equal(t, uint64(1001), ts)
	assert.False(t, clamped)
	assert.Equal(t, uint64(1000), c.Now())
}

func TestForcedTimestamp(t *testing.T) {
	c := New(Options{Now: fixed(1000)})
	c.SetNext(5000)

	ts, clamped := c.Next(1000)
	assert.Equal(t, uint64(5000), ts)
	assert.False(t, clamped)

	// override is kept until a block is mined with it
	ts, _ = c.Next(1000)
	assert.Equal(t, uint64(5000), ts)

	c.Mined(ts)
	assert.Nil(t, c.State().Next)
	assert.Equal(t, int64(4000), c.State().Offset)
	assert.Equal(t, uint64(5000), c.Now())

	ts, _ = c.Next(5000)
	assert.Equal(t, uint64(5001), ts)
}

func TestForcedTimestampClamped(t *testing.T) {
	c := New(Options{Now: fixed(1000)})

	c.SetNext(1500)
	ts, clamped := c.Next(2000)
	assert.Equal(t, uint64(2001), ts)
	assert.True(t, clamped)

	c.SetNext(2000)
	ts, clamped = c.Next(2000)
	assert.Equal(t, uint64(2001), ts)
	assert.True(t, clamped)

	eq := New(Options{Now: fixed(1000), AllowEqualTimestamp: true})
	eq.SetNext(2000)
	ts, clamped = eq.Next(2000)
	assert.Equal(t, uint64(2000), ts)
	assert.False(t, clamped)
}

func TestInterval(t *testing.T) {
	c := New(Options{Now: fixed(1000), Interval: 12})

	ts, _ := c.Next(100)
	assert.Equal(t, uint64(112), ts)

	c.SetInterval(3)
	ts, _ = c.Next(100)
	assert.Equal(t, uint64(103), ts)

	assert.True(t, c.RemoveInterval())
	assert.False(t, c.RemoveInterval())
	ts, _ = c.Next(100)
	assert.Equal(t, uint64(1000), ts)
}

func TestOffset(t *testing.T) {
	c := New(Options{Now: fixed(1000)})

	assert.Equal(t, int64(60), c.IncreaseTime(60))
	assert.Equal(t, int64(120), c.IncreaseTime(60))
	assert.Equal(t, uint64(1120), c.Now())

	assert.Equal(t, int64(-500), c.SetTime(500))
	assert.Equal(t, uint64(500), c.Now())
	ts, _ := c.Next(10)
	assert.Equal(t, uint64(500), ts)
}

func TestStateRestore(t *testing.T) {
	c := New(Options{Now: fixed(1000)})
	c.SetNext(3000)
	c.IncreaseTime(10)
	s := c.State()

	c.SetNext(4000)
	c.SetInterval(5)
	*s.Next = 9999 // copies are independent
	c.Restore(State{Next: ptr(3000), Offset: 10})

	st := c.State()
	assert.Equal(t, uint64(3000), *st.Next)
	assert.Equal(t, uint64(0), st.Interval)
	assert.Equal(t, int64(10), st.Offset)
}

func ptr(v uint64) *uint64 { return &v }
