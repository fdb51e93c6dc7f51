// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"context"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/vechain/devnode/fork"
)

// Account is the local record of an account.
// Values are never mutated once stored; writers replace them.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash common.Hash
}

func emptyAccount() *Account {
	return &Account{Balance: new(uint256.Int), CodeHash: types.EmptyCodeHash}
}

// IsEmpty reports whether the account has no nonce, balance or code.
func (a *Account) IsEmpty() bool {
	return a.Nonce == 0 && a.Balance.IsZero() && !a.hasCode()
}

func (a *Account) hasCode() bool {
	return a.CodeHash != (common.Hash{}) && a.CodeHash != types.EmptyCodeHash
}

func (a *Account) copy() *Account {
	cpy := *a
	cpy.Balance = new(uint256.Int).Set(a.Balance)
	return &cpy
}

// Origin supplies values never written locally. The fork backend
// implements it.
type Origin interface {
	Account(ctx context.Context, addr common.Address) (*fork.Account, error)
	Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error)
}

var _ Origin = (*fork.Backend)(nil)

// overlay is the set of locally written values.
type overlay struct {
	accounts map[common.Address]*Account
	codes    map[common.Hash][]byte
	storage  map[common.Address]map[common.Hash]common.Hash
	cleared  map[common.Address]bool
}

func newOverlay() *overlay {
	return &overlay{
		accounts: make(map[common.Address]*Account),
		codes:    make(map[common.Hash][]byte),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
		cleared:  make(map[common.Address]bool),
	}
}

// clone copies the overlay. Inner storage maps are copied only when deep
// is set; otherwise the clone must copy a map before writing into it.
func (o *overlay) clone(deep bool) *overlay {
	c := &overlay{
		accounts: maps.Clone(o.accounts),
		codes:    maps.Clone(o.codes),
		storage:  make(map[common.Address]map[common.Hash]common.Hash, len(o.storage)),
		cleared:  maps.Clone(o.cleared),
	}
	for addr, slots := range o.storage {
		if deep {
			slots = maps.Clone(slots)
		}
		c.storage[addr] = slots
	}
	return c
}

// Store is the committed state: a local overlay above an optional origin.
// It is not safe for concurrent mutation; reads may run concurrently.
type Store struct {
	origin Origin
	*overlay
}

// NewStore creates an empty store. origin may be nil.
func NewStore(origin Origin) *Store {
	return &Store{origin: origin, overlay: newOverlay()}
}

// SetOrigin replaces the origin. Local values are kept.
func (s *Store) SetOrigin(origin Origin) {
	s.origin = origin
}

// Account returns the account at addr; an unknown account is empty.
func (s *Store) Account(ctx context.Context, addr common.Address) (*Account, error) {
	if acc, ok := s.accounts[addr]; ok {
		metricAccountCounter().AddWithLabel(1, map[string]string{"type": "account", "target": "local"})
		return acc, nil
	}
	if s.origin == nil {
		return emptyAccount(), nil
	}
	metricAccountCounter().AddWithLabel(1, map[string]string{"type": "account", "target": "origin"})
	remote, err := s.origin.Account(ctx, addr)
	if err != nil {
		return nil, err
	}
	acc := &Account{Nonce: remote.Nonce, Balance: remote.Balance, CodeHash: types.EmptyCodeHash}
	if acc.Balance == nil {
		acc.Balance = new(uint256.Int)
	}
	if len(remote.Code) > 0 {
		acc.CodeHash = crypto.Keccak256Hash(remote.Code)
	}
	return acc, nil
}

// Code returns the code deployed at addr.
func (s *Store) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	if acc, ok := s.accounts[addr]; ok {
		if !acc.hasCode() {
			return nil, nil
		}
		// a remote account touched locally keeps its code at the origin
		if code, ok := s.codes[acc.CodeHash]; ok {
			return code, nil
		}
	}
	if s.origin == nil {
		return nil, nil
	}
	remote, err := s.origin.Account(ctx, addr)
	if err != nil {
		return nil, err
	}
	return remote.Code, nil
}

// Storage returns the value of slot in addr's storage.
func (s *Store) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	if val, ok := s.storage[addr][slot]; ok {
		metricAccountCounter().AddWithLabel(1, map[string]string{"type": "storage", "target": "local"})
		return val, nil
	}
	if s.origin == nil || s.cleared[addr] {
		return common.Hash{}, nil
	}
	metricAccountCounter().AddWithLabel(1, map[string]string{"type": "storage", "target": "origin"})
	return s.origin.Storage(ctx, addr, slot)
}

// Copy returns an independent copy sharing the origin.
func (s *Store) Copy() *Store {
	return &Store{origin: s.origin, overlay: s.overlay.clone(true)}
}

// Restore replaces the local overlay with the one held by cpy.
func (s *Store) Restore(cpy *Store) {
	s.overlay = cpy.overlay.clone(true)
}

// Reset drops every local value.
func (s *Store) Reset() {
	s.overlay = newOverlay()
}
