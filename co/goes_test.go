// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/vechain/devnode/co"
)

func TestGoesWait(t *testing.T) {
	var (
		goes co.Goes
		n    atomic.Int32
	)
	for range 10 {
		goes.Go(func() { n.Add(1) })
	}
	goes.Wait()
	assert.Equal(t, int32(10), n.Load())
}

func TestGoesEvery(t *testing.T) {
	var (
		goes co.Goes
		n    atomic.Int32
	)
	ctx, cancel := context.WithCancel(context.Background())
	goes.Every(ctx, time.Millisecond, func() { n.Add(1) })

	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	goes.Wait()
}

func TestSignalCollapses(t *testing.T) {
	var sig co.Signal
	sig.Signal()
	sig.Signal()

	<-sig.C()
	select {
	case <-sig.C():
		t.Fatal("expected a single pending wake-up")
	default:
	}
}
