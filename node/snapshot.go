// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"math/big"

	"github.com/pkg/errors"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/clock"
	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/state"
	"github.com/vechain/devnode/txpool"
)

// version is everything a revert restores.
type version struct {
	store       *state.Store
	height      uint64
	pool        []*txpool.TxObject
	clock       clock.State
	nextBaseFee *big.Int
}

// Snapshot captures the state, the chain height, the pool and the clock.
// Ids start at 1 and are never reused.
func (n *Node) Snapshot(ctx context.Context) (uint64, error) {
	release, err := n.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	v := &version{
		store:  n.store.Copy(),
		height: n.repo.BestBlock().NumberU64(),
		pool:   n.pool.Dump(),
		clock:  n.clock.State(),
	}
	if n.nextBaseFee != nil {
		v.nextBaseFee = new(big.Int).Set(n.nextBaseFee)
	}
	id := n.snaps.Take(v)
	metricSnapshots().AddWithLabel(1, map[string]string{"op": "take"})
	logger.Debug("snapshot taken", "id", id, "height", v.height, "txs", len(v.pool))
	return id, nil
}

// Revert restores the snapshot id. It and every later snapshot are
// consumed. An id that is not valid reports false and changes nothing.
func (n *Node) Revert(ctx context.Context, id uint64) (bool, error) {
	release, err := n.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	v, ok := n.snaps.Revert(id)
	if !ok {
		return false, nil
	}

	n.mu.Lock()
	n.store.Restore(v.store)
	n.repo.Truncate(v.height)
	n.pool.Restore(v.pool)
	n.clock.Restore(v.clock)
	n.nextBaseFee = v.nextBaseFee
	n.mu.Unlock()

	metricSnapshots().AddWithLabel(1, map[string]string{"op": "revert"})
	metricBestBlock().Set(int64(v.height))
	logger.Info("reverted", "id", id, "height", v.height)
	return true, nil
}

// Reset drops the chain and starts over from a new base block. A nil cfg
// leaves fork mode; otherwise the node forks cfg, whose empty fields are
// taken from the current fork. Snapshots and pooled txs are dropped.
func (n *Node) Reset(ctx context.Context, cfg *fork.Config) error {
	release, err := n.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	var remote fork.Remote
	if cfg != nil {
		want := *cfg
		if n.backend != nil {
			cur := n.backend.Config()
			if want.URL == "" {
				want.URL = cur.URL
			}
			if want.Timeout == 0 {
				want.Timeout = cur.Timeout
			}
			if want.RequestsPerSecond == 0 {
				want.RequestsPerSecond = cur.RequestsPerSecond
			}
		}
		if want.URL == "" {
			return errors.New("reset: fork url required")
		}
		if remote, want, err = n.opts.Dialer(ctx, want); err != nil {
			return errors.WithMessage(err, "reset")
		}
		if want.ChainID != n.opts.ChainID {
			logger.Warn("forked chain id differs from the node's", "fork", want.ChainID, "node", n.opts.ChainID)
		}
		cfg = &want
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	prev, prevRemote := n.backend, n.remote
	var prevCfg fork.Config
	if prev != nil {
		prevCfg = prev.Config()
	}

	backend := prev
	switch {
	case cfg == nil:
		backend = nil
	case prev != nil:
		// keeps the disk cache, whose entries are keyed by pin
		prev.Reset(*cfg, remote)
	default:
		if backend, err = newBackend(*cfg, remote); err != nil {
			return err
		}
	}

	tmp := state.NewStore(nil)
	base, err := n.buildBase(ctx, tmp, backend)
	if err != nil {
		switch {
		case backend != nil && backend != prev:
			backend.Close()
		case backend != nil:
			prev.Reset(prevCfg, prevRemote)
		}
		return err
	}
	if prev != nil && backend == nil {
		if err := prev.Close(); err != nil {
			logger.Warn("failed to close fork backend", "err", err)
		}
	}

	n.store.SetOrigin(origin(backend))
	n.store.Restore(tmp)
	n.repo = chain.NewRepository(base)
	n.backend, n.remote = backend, remote
	n.pool.RemoveAll()
	n.snaps.Clear()
	n.nextBaseFee = nil

	metricBestBlock().Set(int64(base.NumberU64()))
	logger.Info("reset", "forked", backend != nil, "base", base.NumberU64(), "hash", base.Hash())
	return nil
}
