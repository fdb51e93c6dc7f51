// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/co"
	"github.com/vechain/devnode/log"
)

var logger = log.WithContext("pkg", "txpool")

// Options options for tx pool.
type Options struct {
	Limit               int
	MaxQueuedPerAccount int
	// MaxLifetime is how long a tx may stay pooled, enforced by EvictOlderThan callers.
	MaxLifetime         time.Duration
	BlockGasLimit       uint64
}

// Ledger reads the committed sender state the pool validates against.
type Ledger interface {
	Account(ctx context.Context, addr common.Address) (nonce uint64, balance *uint256.Int, err error)
}

// TxEvent will be posted when tx is added or status changed.
type TxEvent struct {
	Tx     *types.Transaction
	Sender common.Address
}

// TxPool maintains pending transactions.
type TxPool struct {
	options  Options
	signer   types.Signer
	ledger   Ledger
	gasLimit atomic.Uint64

	mu       sync.RWMutex
	all      map[common.Hash]*TxObject
	accounts map[common.Address]map[uint64]*TxObject
	seq      uint64

	// events are queued in admission order and sent by one goroutine
	evMu    sync.Mutex
	events  []*TxEvent
	evReady co.Signal

	ctx    context.Context
	cancel func()
	txFeed event.Feed
	scope  event.SubscriptionScope
	goes   co.Goes
}

// New create a new TxPool instance. The pool never expires txs by itself,
// its owner calls EvictOlderThan. Close is required to be called at end.
func New(signer types.Signer, ledger Ledger, options Options) *TxPool {
	ctx, cancel := context.WithCancel(context.Background())
	pool := &TxPool{
		options:  options,
		signer:   signer,
		ledger:   ledger,
		all:      make(map[common.Hash]*TxObject),
		accounts: make(map[common.Address]map[uint64]*TxObject),
		ctx:      ctx,
		cancel:   cancel,
	}
	pool.gasLimit.Store(options.BlockGasLimit)
	pool.goes.Go(pool.eventLoop)
	return pool
}

func (p *TxPool) eventLoop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.evReady.C():
		}
		p.evMu.Lock()
		events := p.events
		p.events = nil
		p.evMu.Unlock()

		for _, ev := range events {
			p.txFeed.Send(ev)
		}
	}
}

// Close cleanup inner go routines.
func (p *TxPool) Close() {
	p.cancel()
	p.scope.Close()
	p.goes.Wait()
	logger.Debug("closed")
}

// SubscribeTxEvent receivers will receive a tx event on every admission.
func (p *TxPool) SubscribeTxEvent(ch chan *TxEvent) event.Subscription {
	return p.scope.Track(p.txFeed.Subscribe(ch))
}

// SetBlockGasLimit changes the gas limit new admissions are checked against.
func (p *TxPool) SetBlockGasLimit(limit uint64) {
	p.gasLimit.Store(limit)
}

// Add validates a signed transaction and admits it.
func (p *TxPool) Add(ctx context.Context, tx *types.Transaction) (*TxObject, error) {
	obj, err := ResolveTx(p.signer, tx)
	if err != nil {
		metricTxPoolRejections().AddWithLabel(1, map[string]string{"reason": reason(err)})
		return nil, err
	}
	return obj, p.add(ctx, obj)
}

// AddImpersonated admits a transaction for sender without checking its signature.
func (p *TxPool) AddImpersonated(ctx context.Context, tx *types.Transaction, sender common.Address) (*TxObject, error) {
	obj := ImpersonatedTx(tx, sender)
	return obj, p.add(ctx, obj)
}

func (p *TxPool) add(ctx context.Context, obj *TxObject) error {
	err := p.validate(ctx, obj)
	if err != nil {
		if IsAdmissionError(err) {
			metricTxPoolRejections().AddWithLabel(1, map[string]string{"reason": reason(err)})
		}
		return err
	}
	logger.Trace("tx added", "id", obj.Hash(), "sender", obj.sender, "nonce", obj.Nonce())
	return nil
}

func (p *TxPool) validate(ctx context.Context, obj *TxObject) error {
	if obj.GasFeeCap().Cmp(obj.GasTipCap()) < 0 {
		return ErrFeeCapBelowTip
	}
	// read the ledger before taking the pool lock, the read may hit the fork backend
	nonce, balance, err := p.ledger.Account(ctx, obj.sender)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.all[obj.Hash()]; ok {
		return ErrAlreadyKnown
	}
	if obj.Nonce() < nonce {
		return errors.WithMessagef(ErrNonceTooLow, "next nonce %d, tx nonce %d", nonce, obj.Nonce())
	}

	txs := p.accounts[obj.sender]
	existing := txs[obj.Nonce()]
	if existing == nil && p.options.MaxQueuedPerAccount > 0 {
		next := nonce
		for txs[next] != nil {
			next++
		}
		if obj.Nonce() > next {
			queued := 0
			for n := range txs {
				if n > next {
					queued++
				}
			}
			if queued >= p.options.MaxQueuedPerAccount {
				return ErrQueueFull
			}
		}
	}

	if balance.ToBig().Cmp(obj.cost()) < 0 {
		return ErrInsufficientFunds
	}
	if limit := p.gasLimit.Load(); limit > 0 && obj.Gas() > limit {
		return errors.WithMessagef(ErrGasLimit, "tx gas %d, block gas limit %d", obj.Gas(), limit)
	}

	if existing != nil {
		if obj.GasFeeCap().Cmp(existing.GasFeeCap()) <= 0 {
			return ErrReplaceUnderpriced
		}
		delete(p.all, existing.Hash())
		logger.Debug("tx replaced", "old", existing.Hash(), "new", obj.Hash())
	} else if p.options.Limit > 0 && len(p.all) >= p.options.Limit {
		return ErrTxPoolOverflow
	}

	p.seq++
	obj.seq = p.seq
	obj.timeAdded = time.Now()
	if txs == nil {
		txs = make(map[uint64]*TxObject)
		p.accounts[obj.sender] = txs
	}
	txs[obj.Nonce()] = obj
	p.all[obj.Hash()] = obj
	metricTxPoolGauge().Set(int64(len(p.all)))

	// queued under the pool lock, so events follow admission order
	p.evMu.Lock()
	p.events = append(p.events, &TxEvent{Tx: obj.Transaction, Sender: obj.sender})
	p.evMu.Unlock()
	p.evReady.Signal()
	return nil
}

// Get returns the pooled transaction by hash.
func (p *TxPool) Get(hash common.Hash) *TxObject {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.all[hash]
}

// Len returns count of pooled txs.
func (p *TxPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.all)
}

// Remove drops the given txs and returns how many were pooled.
func (p *TxPool) Remove(hashes ...common.Hash) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, hash := range hashes {
		if p.removeLocked(hash) {
			n++
		}
	}
	metricTxPoolGauge().Set(int64(len(p.all)))
	return n
}

// RemoveAll empties the pool.
func (p *TxPool) RemoveAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.all = make(map[common.Hash]*TxObject)
	p.accounts = make(map[common.Address]map[uint64]*TxObject)
	metricTxPoolGauge().Set(0)
}

func (p *TxPool) removeLocked(hash common.Hash) bool {
	obj, ok := p.all[hash]
	if !ok {
		return false
	}
	delete(p.all, hash)
	txs := p.accounts[obj.sender]
	delete(txs, obj.Nonce())
	if len(txs) == 0 {
		delete(p.accounts, obj.sender)
	}
	return true
}

// EvictOlderThan drops txs admitted more than d ago and returns the count.
func (p *TxPool) EvictOlderThan(d time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	deadline := time.Now().Add(-d)
	n := 0
	for hash, obj := range p.all {
		if obj.timeAdded.Before(deadline) {
			p.removeLocked(hash)
			n++
		}
	}
	if n > 0 {
		metricTxPoolEvictions().Add(int64(n))
		metricTxPoolGauge().Set(int64(len(p.all)))
	}
	return n
}

// Dump returns all pooled txs in admission order.
func (p *TxPool) Dump() []*TxObject {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sortedLocked()
}

func (p *TxPool) sortedLocked() []*TxObject {
	objs := make([]*TxObject, 0, len(p.all))
	for _, obj := range p.all {
		objs = append(objs, obj)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].seq < objs[j].seq })
	return objs
}

// Restore replaces the pool content with objs as returned by Dump.
// Admission order is kept and no validation is performed. Objects that were
// never pooled are admitted in slice order.
func (p *TxPool) Restore(objs []*TxObject) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.all = make(map[common.Hash]*TxObject, len(objs))
	p.accounts = make(map[common.Address]map[uint64]*TxObject)
	for _, obj := range objs {
		if obj.seq == 0 {
			p.seq++
			obj.seq = p.seq
			obj.timeAdded = time.Now()
		}
		txs := p.accounts[obj.sender]
		if txs == nil {
			txs = make(map[uint64]*TxObject)
			p.accounts[obj.sender] = txs
		}
		txs[obj.Nonce()] = obj
		p.all[obj.Hash()] = obj
		if obj.seq > p.seq {
			p.seq = obj.seq
		}
	}
	metricTxPoolGauge().Set(int64(len(p.all)))
}

// NextNonce returns the nonce following the run of pooled txs of sender
// that starts at nonce.
func (p *TxPool) NextNonce(sender common.Address, nonce uint64) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	txs := p.accounts[sender]
	for txs[nonce] != nil {
		nonce++
	}
	return nonce
}

// Content splits the pool into executable and future txs per sender,
// both sorted by nonce.
func (p *TxPool) Content(ctx context.Context) (pending, queued map[common.Address][]*TxObject, err error) {
	snapshot := p.snapshot()
	pending = make(map[common.Address][]*TxObject)
	queued = make(map[common.Address][]*TxObject)
	for sender, txs := range snapshot {
		nonce, _, err := p.ledger.Account(ctx, sender)
		if err != nil {
			return nil, nil, err
		}
		run, rest := split(txs, nonce)
		if len(run) > 0 {
			pending[sender] = run
		}
		if len(rest) > 0 {
			queued[sender] = rest
		}
	}
	return pending, queued, nil
}

func (p *TxPool) snapshot() map[common.Address]map[uint64]*TxObject {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cpy := make(map[common.Address]map[uint64]*TxObject, len(p.accounts))
	for sender, txs := range p.accounts {
		m := make(map[uint64]*TxObject, len(txs))
		for n, obj := range txs {
			m[n] = obj
		}
		cpy[sender] = m
	}
	return cpy
}

// split returns the run of txs contiguous from nonce and the remaining txs,
// each sorted by nonce.
func split(txs map[uint64]*TxObject, nonce uint64) (run, rest []*TxObject) {
	for txs[nonce] != nil {
		run = append(run, txs[nonce])
		nonce++
	}
	for n, obj := range txs {
		if n >= nonce || n < nonce-uint64(len(run)) {
			rest = append(rest, obj)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i].Nonce() < rest[j].Nonce() })
	return run, rest
}

// Select returns executable txs for a block of gas budget. Each sender's
// txs are contiguous from its committed nonce, senders interleave by
// effective gas price. Selection stops at the first tx that does not fit.
func (p *TxPool) Select(ctx context.Context, budget uint64, baseFee *big.Int) ([]*TxObject, error) {
	snapshot := p.snapshot()
	runs := make(map[common.Address][]*TxObject, len(snapshot))
	for sender, txs := range snapshot {
		nonce, _, err := p.ledger.Account(ctx, sender)
		if err != nil {
			return nil, err
		}
		if run, _ := split(txs, nonce); len(run) > 0 {
			runs[sender] = run
		}
	}

	var (
		selected []*TxObject
		gas      uint64
	)
	ordering := newOrdering(runs, baseFee)
	for {
		obj := ordering.Peek()
		if obj == nil {
			break
		}
		if gas+obj.Gas() > budget {
			break
		}
		gas += obj.Gas()
		selected = append(selected, obj)
		ordering.Shift()
	}
	return selected, nil
}
