// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package clock computes block timestamps.
package clock

import (
	"sync"
	"time"

	"github.com/vechain/devnode/log"
)

var logger = log.WithContext("pkg", "clock")

// Options options for the clock.
type Options struct {
	// Interval is a fixed timestamp increment per block, 0 to follow the wall clock.
	Interval uint64
	// AllowEqualTimestamp lets a forced timestamp equal to the parent's stand.
	AllowEqualTimestamp bool
	// Now overrides the wall clock.
	Now func() time.Time
}

// State is the mutable part of a Clock, captured by snapshots and dumps.
type State struct {
	Next     *uint64 `json:"next,omitempty"`
	Interval uint64  `json:"interval,omitempty"`
	Offset   int64   `json:"offset"`
}

// Clock tracks a one-shot timestamp override, an optional fixed interval
// and the offset from the wall clock.
type Clock struct {
	mu         sync.Mutex
	now        func() time.Time
	allowEqual bool
	state      State
}

// New creates a clock.
func New(opts Options) *Clock {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Clock{
		now:        now,
		allowEqual: opts.AllowEqualTimestamp,
		state:      State{Interval: opts.Interval},
	}
}

func (c *Clock) wall() int64 {
	return c.now().Unix()
}

// Now returns the node's notion of the current unix time.
func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clampUint(c.wall() + c.state.Offset)
}

// Next returns the timestamp for a block on top of a parent with the given
// timestamp. It does not change the clock, see Mined. clamped reports that a
// forced timestamp not after the parent was raised to parent + 1.
func (c *Clock) Next(parent uint64) (ts uint64, clamped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if next := c.state.Next; next != nil {
		switch {
		case *next > parent:
			return *next, false
		case *next == parent && c.allowEqual:
			return parent, false
		default:
			logger.Warn("forced timestamp not after parent, clamped", "forced", *next, "parent", parent, "used", parent+1)
			return parent + 1, true
		}
	}
	if c.state.Interval > 0 {
		return parent + c.state.Interval, false
	}
	if now := clampUint(c.wall() + c.state.Offset); now > parent {
		return now, false
	}
	return parent + 1, false
}

// Mined records that a block was sealed with ts. A pending override is
// consumed and later timestamps continue from ts.
func (c *Clock) Mined(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Next == nil {
		return
	}
	c.state.Next = nil
	c.state.Offset = int64(ts) - c.wall()
}

// SetNext forces the timestamp of the next block.
func (c *Clock) SetNext(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Next = &ts
}

// IncreaseTime moves the clock forward and returns the total offset in seconds.
func (c *Clock) IncreaseTime(seconds uint64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Offset += int64(seconds)
	return c.state.Offset
}

// SetTime sets the current time to ts and returns the new offset.
func (c *Clock) SetTime(ts uint64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Offset = int64(ts) - c.wall()
	return c.state.Offset
}

// SetInterval fixes the timestamp increment between blocks.
func (c *Clock) SetInterval(seconds uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Interval = seconds
}

// RemoveInterval drops the fixed increment and reports whether one was set.
func (c *Clock) RemoveInterval() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	had := c.state.Interval > 0
	c.state.Interval = 0
	return had
}

// State returns a copy of the mutable state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Next != nil {
		next := *s.Next
		s.Next = &next
	}
	return s
}

// Restore replaces the mutable state.
func (c *Clock) Restore(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Next != nil {
		next := *s.Next
		s.Next = &next
	}
	c.state = s
}

func clampUint(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
