// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/genesis"
	"github.com/vechain/devnode/txpool"
)

var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrHistoricalState = errors.New("state is only available at the latest block")
)

// prefetch runs warm against the fork backend without holding the commit
// lock, so remote misses are cached before a read takes the lock and a slow
// fork never stalls the writer. Failures are left to the read itself.
func (n *Node) prefetch(warm func(*fork.Backend) error) {
	n.mu.RLock()
	backend := n.backend
	n.mu.RUnlock()
	if backend == nil || warm == nil {
		return
	}
	if err := warm(backend); err != nil {
		logger.Debug("fork prefetch failed", "err", err)
	}
}

// readState runs f under the shared lock once at is checked to be the head.
// A nil at means the head. warm, if any, is prefetched first.
func (n *Node) readState(at *uint64, warm func(*fork.Backend) error, f func() error) error {
	n.prefetch(warm)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if at != nil && *at != n.repo.BestBlock().NumberU64() {
		return errors.WithMessagef(ErrHistoricalState, "block %d", *at)
	}
	return f()
}

func warmAccount(ctx context.Context, addr common.Address) func(*fork.Backend) error {
	return func(b *fork.Backend) error {
		_, err := b.Account(ctx, addr)
		return err
	}
}

// Balance returns the balance of addr at block at, nil for the head.
func (n *Node) Balance(ctx context.Context, addr common.Address, at *uint64) (*big.Int, error) {
	var balance *big.Int
	err := n.readState(at, warmAccount(ctx, addr), func() error {
		acc, err := n.store.Account(ctx, addr)
		if err != nil {
			return err
		}
		balance = acc.Balance.ToBig()
		return nil
	})
	return balance, err
}

// Nonce returns the nonce of addr at block at, nil for the head.
func (n *Node) Nonce(ctx context.Context, addr common.Address, at *uint64) (uint64, error) {
	var nonce uint64
	err := n.readState(at, warmAccount(ctx, addr), func() error {
		acc, err := n.store.Account(ctx, addr)
		if err != nil {
			return err
		}
		nonce = acc.Nonce
		return nil
	})
	return nonce, err
}

// PendingNonce returns the nonce following the pooled txs of addr.
func (n *Node) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce uint64
	err := n.readState(nil, warmAccount(ctx, addr), func() error {
		acc, err := n.store.Account(ctx, addr)
		if err != nil {
			return err
		}
		nonce = n.pool.NextNonce(addr, acc.Nonce)
		return nil
	})
	return nonce, err
}

// Code returns the code of addr at block at, nil for the head.
func (n *Node) Code(ctx context.Context, addr common.Address, at *uint64) ([]byte, error) {
	var code []byte
	err := n.readState(at, warmAccount(ctx, addr), func() (err error) {
		code, err = n.store.Code(ctx, addr)
		return err
	})
	return code, err
}

// StorageAt returns a storage slot of addr at block at, nil for the head.
func (n *Node) StorageAt(ctx context.Context, addr common.Address, slot common.Hash, at *uint64) (common.Hash, error) {
	var val common.Hash
	err := n.readState(at, func(b *fork.Backend) error {
		_, err := b.Storage(ctx, addr, slot)
		return err
	}, func() (err error) {
		val, err = n.store.Storage(ctx, addr, slot)
		return err
	})
	return val, err
}

// BestBlock returns the head.
func (n *Node) BestBlock() *types.Block {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.repo.BestBlock()
}

// BlockByNumber returns the block at number. Blocks below the fork point
// are fetched from the fork and come without bodies or receipts.
func (n *Node) BlockByNumber(ctx context.Context, number uint64) (*chain.Entry, error) {
	n.mu.RLock()
	e, ok := n.repo.GetEntry(number)
	backend := n.backend
	base := n.repo.BaseBlock().NumberU64()
	n.mu.RUnlock()

	if ok {
		return e, nil
	}
	// remote headers are immutable, so they are fetched without the lock
	if backend != nil && number < base {
		header, err := backend.Header(ctx, number)
		if err != nil {
			if errors.Is(err, fork.ErrNotFound) {
				return nil, ErrBlockNotFound
			}
			return nil, err
		}
		return &chain.Entry{Block: types.NewBlockWithHeader(header)}, nil
	}
	return nil, ErrBlockNotFound
}

// BlockByHash returns a local block by hash.
func (n *Node) BlockByHash(hash common.Hash) (*chain.Entry, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if e, ok := n.repo.GetEntryByHash(hash); ok {
		return e, nil
	}
	return nil, ErrBlockNotFound
}

// TxInfo is a transaction known to the node. Location is nil while the tx
// is pooled.
type TxInfo struct {
	Tx       *types.Transaction
	Sender   common.Address
	Location *chain.TxLocation
}

// Transaction looks up a mined or pooled transaction.
func (n *Node) Transaction(hash common.Hash) (*TxInfo, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if loc, ok := n.repo.GetTransaction(hash); ok {
		return &TxInfo{Tx: loc.Tx(), Sender: loc.Sender(), Location: &loc}, true
	}
	if obj := n.pool.Get(hash); obj != nil {
		return &TxInfo{Tx: obj.Transaction, Sender: obj.Sender()}, true
	}
	return nil, false
}

// Receipt locates a mined transaction.
func (n *Node) Receipt(hash common.Hash) (*chain.TxLocation, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	loc, ok := n.repo.GetTransaction(hash)
	if !ok {
		return nil, false
	}
	return &loc, true
}

// FilterLogs returns the local logs matching f. Open ranges end at the head.
func (n *Node) FilterLogs(f *chain.LogFilter, limit int) []*types.Log {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.repo.FilterLogs(f, limit)
}

// TxPoolContent splits pooled txs into executable and future ones.
func (n *Node) TxPoolContent(ctx context.Context) (pending, queued map[common.Address][]*txpool.TxObject, err error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pool.Content(ctx)
}

// Accounts returns the dev accounts the node signs for.
func (n *Node) Accounts() []common.Address {
	accs := genesis.DevAccounts()
	addrs := make([]common.Address, 0, len(accs))
	for _, acc := range accs {
		addrs = append(addrs, acc.Address)
	}
	return addrs
}

// NextBaseFee returns the base fee of the next block.
func (n *Node) NextBaseFee() *big.Int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.nextBaseFee != nil {
		return new(big.Int).Set(n.nextBaseFee)
	}
	return n.packer.NextBaseFee(n.repo.BestBlock().Header())
}

// GasPrice suggests a legacy gas price for the next block.
func (n *Node) GasPrice() *big.Int {
	return new(big.Int).Add(n.NextBaseFee(), DefaultTip)
}

// Info describes the running node.
type Info struct {
	ChainID        uint64
	BestNumber     uint64
	BestHash       common.Hash
	BestTime       uint64
	GasLimit       uint64
	Coinbase       common.Address
	NextBaseFee    *big.Int
	Automine       bool
	IntervalMining time.Duration
	Fork           *fork.Config
	PendingTxs     int
	Snapshots      int
}

// Info returns a description of the node.
func (n *Node) Info() *Info {
	n.mu.RLock()
	defer n.mu.RUnlock()

	best := n.repo.BestBlock()
	info := &Info{
		ChainID:        n.opts.ChainID,
		BestNumber:     best.NumberU64(),
		BestHash:       best.Hash(),
		BestTime:       best.Time(),
		GasLimit:       n.gasLimit,
		Coinbase:       n.coinbase,
		NextBaseFee:    n.packer.NextBaseFee(best.Header()),
		Automine:       n.automine.Load(),
		IntervalMining: time.Duration(n.interval.Load()),
		PendingTxs:     n.pool.Len(),
		Snapshots:      n.snaps.Len(),
	}
	if n.nextBaseFee != nil {
		info.NextBaseFee = new(big.Int).Set(n.nextBaseFee)
	}
	if n.backend != nil {
		cfg := n.backend.Config()
		info.Fork = &cfg
	}
	return info
}
