// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node owns the local chain. Every mutation goes through a single
// writer slot, reads run concurrently against the last committed state.
//
//	writer slot (semaphore)   admission, mining, admin, snapshot, revert
//	      |
//	      | prepares outside the commit lock
//	      v
//	commit lock (RWMutex)     held exclusively only to publish a change
//	      ^
//	      | held shared for a whole read
//	   readers
package node

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/clock"
	"github.com/vechain/devnode/co"
	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/genesis"
	"github.com/vechain/devnode/log"
	"github.com/vechain/devnode/lvldb"
	"github.com/vechain/devnode/packer"
	"github.com/vechain/devnode/snapshot"
	"github.com/vechain/devnode/state"
	"github.com/vechain/devnode/txpool"
)

var logger = log.WithContext("pkg", "node")

// ChainEvent is published for every sealed block, in seal order.
type ChainEvent struct {
	Entry *chain.Entry
	// Clamped is set when a forced timestamp was raised to keep the chain monotonic.
	Clamped bool
}

// Node is a local development chain, optionally forked from a remote one.
type Node struct {
	opts   Options
	packer *packer.Packer
	signer types.Signer
	writer *semaphore.Weighted

	mu              sync.RWMutex
	store           *state.Store
	repo            *chain.Repository
	backend         *fork.Backend
	remote          fork.Remote
	nextBaseFee     *big.Int
	coinbase        common.Address
	gasLimit        uint64
	impersonated    map[common.Address]bool
	autoImpersonate bool

	pool  *txpool.TxPool
	clock *clock.Clock
	snaps *snapshot.Manager[*version]

	automine        atomic.Bool
	interval        atomic.Int64
	intervalChanged co.Signal

	chainFeed event.Feed
	scope     event.SubscriptionScope
	ctx       context.Context
	cancel    context.CancelFunc
	goes      co.Goes
}

// New creates the node and its base block: a fresh devnet genesis, or the
// pinned remote block when opts.Fork is set. Close is required to be called
// at end.
func New(ctx context.Context, opts Options) (*Node, error) {
	opts.normalize()

	var (
		backend *fork.Backend
		remote  fork.Remote
		err     error
	)
	if opts.Fork != nil {
		var cfg fork.Config
		remote, cfg, err = opts.Dialer(ctx, *opts.Fork)
		if err != nil {
			return nil, errors.WithMessage(err, "fork")
		}
		if backend, err = newBackend(cfg, remote); err != nil {
			return nil, err
		}
		if opts.ChainID == 0 {
			opts.ChainID = cfg.ChainID
		}
	}
	if opts.ChainID == 0 {
		opts.ChainID = DefaultChainID
	}

	chainID := new(big.Int).SetUint64(opts.ChainID)
	n := &Node{
		opts:         opts,
		packer:       packer.New(opts.Executor, chainID),
		signer:       types.LatestSignerForChainID(chainID),
		writer:       semaphore.NewWeighted(1),
		store:        state.NewStore(nil),
		coinbase:     opts.Coinbase,
		gasLimit:     opts.GasLimit,
		impersonated: make(map[common.Address]bool),
		clock:        clock.New(opts.Clock),
		snaps:        snapshot.New[*version](),
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	base, err := n.buildBase(ctx, n.store, backend)
	if err != nil {
		if backend != nil {
			backend.Close()
		}
		return nil, err
	}
	n.repo = chain.NewRepository(base)
	n.backend, n.remote = backend, remote
	n.pool = txpool.New(n.signer, ledger{n}, opts.TxPool)

	n.automine.Store(opts.Automine && opts.BlockInterval <= 0)
	n.interval.Store(int64(opts.BlockInterval))
	n.goes.Go(n.intervalLoop)
	if opts.TxPool.MaxLifetime > 0 {
		n.goes.Every(n.ctx, housekeepingInterval, n.evictExpired)
	}

	logger.Info("node started",
		"chainID", opts.ChainID,
		"base", base.NumberU64(),
		"hash", base.Hash(),
		"forked", backend != nil,
		"automine", n.automine.Load(),
		"interval", opts.BlockInterval)
	return n, nil
}

// Close stops background mining and releases the fork backend.
func (n *Node) Close() {
	n.cancel()
	n.goes.Wait()
	n.pool.Close()
	n.scope.Close()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.backend != nil {
		if err := n.backend.Close(); err != nil {
			logger.Warn("failed to close fork backend", "err", err)
		}
		n.backend = nil
	}
	logger.Debug("closed")
}

func newBackend(cfg fork.Config, remote fork.Remote) (*fork.Backend, error) {
	var disk *lvldb.LevelDB
	if cfg.CacheDir != "" {
		var err error
		if disk, err = lvldb.New(cfg.CacheDir, lvldb.Options{}); err != nil {
			return nil, errors.Wrap(err, "open fork cache")
		}
	}
	return fork.New(cfg, remote, disk), nil
}

func origin(backend *fork.Backend) state.Origin {
	if backend == nil {
		return nil
	}
	return backend
}

// buildBase resets store to the allocation of a new base block over backend.
func (n *Node) buildBase(ctx context.Context, store *state.Store, backend *fork.Backend) (*types.Block, error) {
	launch := n.opts.GenesisTime
	if launch == 0 {
		launch = n.clock.Now()
	}
	builder := genesis.NewDevnet(launch, n.gasLimit)
	if n.opts.BaseFee != nil {
		builder.BaseFee(n.opts.BaseFee)
	}
	if backend != nil {
		cfg := backend.Config()
		header, err := backend.Header(ctx, cfg.BlockNumber)
		if err != nil {
			return nil, errors.WithMessage(err, "fork base block")
		}
		builder.Base(header)
	}

	store.SetOrigin(origin(backend))
	store.Reset()
	return builder.Build(ctx, store)
}

// acquire takes the writer slot. A cancelled ctx gives up waiting without
// affecting other waiters.
func (n *Node) acquire(ctx context.Context) (func(), error) {
	if err := n.writer.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { n.writer.Release(1) }, nil
}

// exclusive runs f holding both the writer slot and the commit lock.
func (n *Node) exclusive(ctx context.Context, f func() error) error {
	release, err := n.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	n.mu.Lock()
	defer n.mu.Unlock()
	return f()
}

// modify applies the state writes made by f. The writes are prepared
// outside the commit lock.
func (n *Node) modify(ctx context.Context, f func(st *state.State) error) error {
	release, err := n.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	st := n.store.NewState(ctx)
	if err := f(st); err != nil {
		return err
	}
	n.mu.Lock()
	n.store.Apply(st.Journal())
	n.mu.Unlock()
	return nil
}

// ChainID returns the chain id.
func (n *Node) ChainID() uint64 {
	return n.opts.ChainID
}

// Signer returns the signer transactions are checked with.
func (n *Node) Signer() types.Signer {
	return n.signer
}

// SubscribeChainEvent receives every sealed block.
func (n *Node) SubscribeChainEvent(ch chan *ChainEvent) event.Subscription {
	return n.scope.Track(n.chainFeed.Subscribe(ch))
}

// SubscribeTxEvent receives every admitted transaction.
func (n *Node) SubscribeTxEvent(ch chan *txpool.TxEvent) event.Subscription {
	return n.pool.SubscribeTxEvent(ch)
}

// Automine reports whether a block is mined after each admission.
func (n *Node) Automine() bool {
	return n.automine.Load()
}

// SetAutomine switches automine. Enabling it stops interval mining.
func (n *Node) SetAutomine(ctx context.Context, enabled bool) error {
	release, err := n.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	n.automine.Store(enabled)
	if enabled && n.interval.Swap(0) != 0 {
		n.intervalChanged.Signal()
	}
	logger.Info("automine changed", "enabled", enabled)
	if enabled {
		_, err := n.mineOne(ctx, triggerAuto)
		return err
	}
	return nil
}

// IntervalMining returns the interval mining period, 0 when disabled.
func (n *Node) IntervalMining() time.Duration {
	return time.Duration(n.interval.Load())
}

// SetIntervalMining mines a block every d, 0 disables. A positive d
// disables automine.
func (n *Node) SetIntervalMining(ctx context.Context, d time.Duration) error {
	release, err := n.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if d < 0 {
		d = 0
	}
	if d > 0 {
		n.automine.Store(false)
	}
	n.interval.Store(int64(d))
	n.intervalChanged.Signal()
	logger.Info("interval mining changed", "interval", d)
	return nil
}

func (n *Node) intervalLoop() {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
	}
	defer stop()

	for {
		var tick <-chan time.Time
		if d := time.Duration(n.interval.Load()); d > 0 {
			if timer == nil {
				timer = time.NewTimer(d)
			}
			tick = timer.C
		}

		select {
		case <-n.ctx.Done():
			return
		case <-n.intervalChanged.C():
			stop()
		case <-tick:
			timer = nil
			n.mineInterval()
		}
	}
}

// evictExpired drops txs pooled longer than the configured lifetime. Like
// any other mutation it runs in the writer slot.
func (n *Node) evictExpired() {
	if err := n.exclusive(n.ctx, func() error {
		if count := n.pool.EvictOlderThan(n.opts.TxPool.MaxLifetime); count > 0 {
			logger.Debug("evicted expired txs", "count", count)
		}
		return nil
	}); err != nil && n.ctx.Err() == nil {
		logger.Warn("tx eviction failed", "err", err)
	}
}

func (n *Node) mineInterval() {
	release, err := n.acquire(n.ctx)
	if err != nil {
		return
	}
	defer release()

	// the mode may have changed while waiting for the slot
	if n.interval.Load() == 0 {
		return
	}
	if _, err := n.mineOne(n.ctx, triggerInterval); err != nil && n.ctx.Err() == nil {
		logger.Warn("interval mining failed", "err", err)
	}
}
