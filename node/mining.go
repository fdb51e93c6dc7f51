// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/packer"
)

type trigger string

const (
	triggerAuto     trigger = "auto"
	triggerInterval trigger = "interval"
	triggerManual   trigger = "manual"
)

// MineOptions controls a manual mining request.
type MineOptions struct {
	// Blocks to mine, at least one.
	Blocks uint64
	// Interval in seconds between the timestamps of the mined blocks, 0 for
	// the clock's choice.
	Interval uint64
	// Timestamp forces the timestamp of the first block.
	Timestamp *uint64
}

// Mine mines opts.Blocks blocks regardless of the pool content.
func (n *Node) Mine(ctx context.Context, opts MineOptions) ([]*chain.Entry, error) {
	release, err := n.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if opts.Blocks == 0 {
		opts.Blocks = 1
	}
	if opts.Timestamp != nil {
		n.clock.SetNext(*opts.Timestamp)
	}
	entries := make([]*chain.Entry, 0, opts.Blocks)
	for i := uint64(0); i < opts.Blocks; i++ {
		if i > 0 && opts.Interval > 0 {
			n.clock.SetNext(entries[i-1].Block.Time() + opts.Interval)
		}
		entry, err := n.mineOne(ctx, triggerManual)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// mineOne runs a mining pass. The caller holds the writer slot. Only an
// automine pass may yield no block, when nothing is eligible.
func (n *Node) mineOne(ctx context.Context, t trigger) (*chain.Entry, error) {
	startTime := mclock.Now()

	parent := n.repo.BestBlock().Header()
	baseFee := n.nextBaseFee
	if baseFee == nil {
		baseFee = n.packer.NextBaseFee(parent)
	}

	candidates, err := n.pool.Select(ctx, n.gasLimit, baseFee)
	if err != nil {
		return nil, err
	}
	if t == triggerAuto && len(candidates) == 0 {
		return nil, nil
	}

	timestamp, clamped := n.clock.Next(parent.Time)
	st := n.store.NewState(ctx)
	flow := n.packer.Prepare(ctx, parent, st, packer.Template{
		Timestamp: timestamp,
		Coinbase:  n.coinbase,
		GasLimit:  n.gasLimit,
		BaseFee:   baseFee,
	})

	var dropped []common.Hash
adopt:
	for _, obj := range candidates {
		err := flow.Adopt(obj)
		switch {
		case err == nil:
		case packer.IsGasLimitReached(err):
			break adopt
		case packer.IsTxNotAdoptableNow(err):
			logger.Trace("tx not adoptable now", "id", obj.Hash(), "err", err)
		case packer.IsBadTx(err):
			logger.Debug("bad tx dropped", "id", obj.Hash(), "err", err)
			dropped = append(dropped, obj.Hash())
		default:
			// nothing is committed, the pool keeps every candidate
			return nil, err
		}
	}
	if t == triggerAuto && len(flow.Txs()) == 0 {
		if len(dropped) > 0 {
			n.mu.Lock()
			n.pool.Remove(dropped...)
			n.mu.Unlock()
			metricDroppedTxs().Add(int64(len(dropped)))
		}
		return nil, nil
	}

	block, receipts, senders := flow.Pack()
	included := make([]common.Hash, 0, len(block.Transactions()))
	for _, tx := range block.Transactions() {
		included = append(included, tx.Hash())
	}

	n.mu.Lock()
	n.store.Apply(st.Journal())
	entry := n.repo.AddBlock(block, receipts, senders)
	n.pool.Remove(included...)
	n.pool.Remove(dropped...)
	n.clock.Mined(timestamp)
	n.nextBaseFee = nil
	n.mu.Unlock()

	if clamped {
		metricTimestampClamps().Add(1)
	}
	metricDroppedTxs().Add(int64(len(dropped)))
	metricMinedBlocks().AddWithLabel(1, map[string]string{"trigger": string(t)})
	metricBestBlock().Set(int64(block.NumberU64()))

	logger.Info("📦 block mined",
		"number", block.NumberU64(),
		"txs", len(block.Transactions()),
		"gasUsed", block.GasUsed(),
		"time", block.Time(),
		"id", block.Hash(),
		"et", common.PrettyDuration(time.Duration(mclock.Now()-startTime)),
	)

	n.chainFeed.Send(&ChainEvent{Entry: entry, Clamped: clamped})
	return entry, nil
}
