// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chain keeps the local block history.
package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Entry is a sealed block with its execution results.
type Entry struct {
	Block    *types.Block
	Receipts types.Receipts
	// Senders holds the sender of each transaction, including impersonated
	// ones whose signature does not recover.
	Senders []common.Address
}

// TxLocation locates a mined transaction.
type TxLocation struct {
	Entry *Entry
	Index int
}

// Tx returns the located transaction.
func (l *TxLocation) Tx() *types.Transaction {
	return l.Entry.Block.Transactions()[l.Index]
}

// Receipt returns the receipt of the located transaction.
func (l *TxLocation) Receipt() *types.Receipt {
	return l.Entry.Receipts[l.Index]
}

// Sender returns the sender of the located transaction.
func (l *TxLocation) Sender() common.Address {
	return l.Entry.Senders[l.Index]
}

// Repository is the in-memory chain, starting at a base block which is the
// genesis, or the pinned block when forking. Not safe for concurrent
// mutation.
type Repository struct {
	entries []*Entry
	byHash  map[common.Hash]*Entry
	txs     map[common.Hash]TxLocation
}

// NewRepository creates a chain with base as its first block.
func NewRepository(base *types.Block) *Repository {
	r := &Repository{
		byHash: make(map[common.Hash]*Entry),
		txs:    make(map[common.Hash]TxLocation),
	}
	r.index(&Entry{Block: base})
	return r
}

func (r *Repository) index(e *Entry) {
	r.entries = append(r.entries, e)
	r.byHash[e.Block.Hash()] = e
	for i, tx := range e.Block.Transactions() {
		r.txs[tx.Hash()] = TxLocation{Entry: e, Index: i}
	}
}

// BaseBlock returns the first local block.
func (r *Repository) BaseBlock() *types.Block {
	return r.entries[0].Block
}

// BestBlock returns the head.
func (r *Repository) BestBlock() *types.Block {
	return r.entries[len(r.entries)-1].Block
}

// BestEntry returns the head entry.
func (r *Repository) BestEntry() *Entry {
	return r.entries[len(r.entries)-1]
}

// AddBlock appends a sealed block. A block that does not extend the head
// is a broken invariant of the miner and panics.
func (r *Repository) AddBlock(block *types.Block, receipts types.Receipts, senders []common.Address) *Entry {
	head := r.BestBlock()
	if block.NumberU64() != head.NumberU64()+1 || block.ParentHash() != head.Hash() {
		panic(fmt.Sprintf("block %d (%s) does not extend head %d (%s)",
			block.NumberU64(), block.Hash().TerminalString(), head.NumberU64(), head.Hash().TerminalString()))
	}
	if len(receipts) != len(block.Transactions()) || len(senders) != len(block.Transactions()) {
		panic(fmt.Sprintf("block %d: %d txs, %d receipts, %d senders",
			block.NumberU64(), len(block.Transactions()), len(receipts), len(senders)))
	}
	e := &Entry{Block: block, Receipts: receipts, Senders: senders}
	r.index(e)
	metricBlocks().Add(1)
	return e
}

// GetEntry returns the entry at number, when it is local.
func (r *Repository) GetEntry(number uint64) (*Entry, bool) {
	base := r.BaseBlock().NumberU64()
	if number < base || number-base >= uint64(len(r.entries)) {
		return nil, false
	}
	return r.entries[number-base], true
}

// GetEntryByHash returns the entry holding the block hash.
func (r *Repository) GetEntryByHash(hash common.Hash) (*Entry, bool) {
	e, ok := r.byHash[hash]
	return e, ok
}

// GetTransaction locates a mined transaction.
func (r *Repository) GetTransaction(hash common.Hash) (TxLocation, bool) {
	loc, ok := r.txs[hash]
	return loc, ok
}

// Truncate drops every block above number. The base block is never dropped.
func (r *Repository) Truncate(number uint64) {
	base := r.BaseBlock().NumberU64()
	if number < base {
		number = base
	}
	keep := number - base + 1
	if keep >= uint64(len(r.entries)) {
		return
	}
	for _, e := range r.entries[keep:] {
		delete(r.byHash, e.Block.Hash())
		for _, tx := range e.Block.Transactions() {
			delete(r.txs, tx.Hash())
		}
	}
	clear(r.entries[keep:])
	r.entries = r.entries[:keep]
}

// Entries returns the local entries from the base block upwards.
func (r *Repository) Entries() []*Entry {
	return append([]*Entry(nil), r.entries...)
}
