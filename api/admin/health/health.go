// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/vechain/devnode/co"
	"github.com/vechain/devnode/node"
)

// BestBlock is the head as last seen by the tracker.
type BestBlock struct {
	Number    hexutil.Uint64 `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

type Status struct {
	Healthy     bool       `json:"healthy"`
	BestBlock   *BestBlock `json:"bestBlock"`
	LastBlockAt *time.Time `json:"lastBlockAt"`
	Automine    bool       `json:"automine"`
	// Interval is the interval mining period in seconds, 0 when off.
	Interval uint64 `json:"intervalMining"`
}

// Health follows sealed blocks of a node. Only interval mining promises
// blocks on its own, so the node is unhealthy when such a block is overdue.
type Health struct {
	node *node.Node
	now  func() time.Time

	lock        sync.RWMutex
	best        BestBlock
	lastBlockAt time.Time

	cancel context.CancelFunc
	goes   co.Goes
}

// New starts tracking n. Close is required to be called at end.
func New(n *node.Node) *Health {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Health{
		node:        n,
		now:         time.Now,
		lastBlockAt: time.Now(),
		cancel:      cancel,
	}
	h.setBest(n.BestBlock().Number().Uint64(), n.BestBlock().Hash(), n.BestBlock().Time())

	ch := make(chan *node.ChainEvent, 16)
	sub := n.SubscribeChainEvent(ch)
	h.goes.Go(func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Err():
				return
			case ev := <-ch:
				b := ev.Entry.Block
				h.lock.Lock()
				h.lastBlockAt = h.now()
				h.lock.Unlock()
				h.setBest(b.NumberU64(), b.Hash(), b.Time())
			}
		}
	})
	return h
}

func (h *Health) setBest(number uint64, hash common.Hash, timestamp uint64) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.best = BestBlock{
		Number:    hexutil.Uint64(number),
		Hash:      hash,
		Timestamp: hexutil.Uint64(timestamp),
	}
}

// Status reports the tracked head. delayBuffer is the slack given to an
// interval block before it counts as missing.
func (h *Health) Status(delayBuffer time.Duration) *Status {
	h.lock.RLock()
	defer h.lock.RUnlock()

	best := h.best
	lastBlockAt := h.lastBlockAt
	interval := h.node.IntervalMining()

	healthy := interval == 0 || h.now().Sub(lastBlockAt) <= interval+delayBuffer
	return &Status{
		Healthy:     healthy,
		BestBlock:   &best,
		LastBlockAt: &lastBlockAt,
		Automine:    h.node.Automine(),
		Interval:    uint64(interval / time.Second),
	}
}

func (h *Health) Close() {
	h.cancel()
	h.goes.Wait()
}
