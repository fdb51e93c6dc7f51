// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"context"
	"fmt"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/vechain/devnode/stackedmap"
)

// ErrInsufficientBalance is returned by SubBalance.
var ErrInsufficientBalance = errors.New("insufficient balance")

type (
	accountKey common.Address
	codeKey    common.Address
	barrierKey common.Address
	storageKey struct {
		addr    common.Address
		barrier int
		slot    common.Hash
	}
)

// Journal is the ordered list of writes made through a State.
type Journal []stackedmap.JournalEntry[any, any]

// State is a revocable working view over a Store. It reads through to the
// store and keeps its own writes until they are applied with Store.Apply.
// A State must not outlive the store contents it was created over.
type State struct {
	ctx   context.Context
	store *Store
	sm    *stackedmap.StackedMap[any, any]
}

// NewState creates a working view. ctx bounds reads that reach the origin.
func (s *Store) NewState(ctx context.Context) *State {
	st := &State{ctx: ctx, store: s}
	st.sm = stackedmap.New(st.load)
	return st
}

func (st *State) load(key any) (any, bool, error) {
	switch k := key.(type) {
	case accountKey:
		acc, err := st.store.Account(st.ctx, common.Address(k))
		if err != nil {
			return nil, false, err
		}
		return acc, true, nil
	case codeKey:
		code, err := st.store.Code(st.ctx, common.Address(k))
		if err != nil {
			return nil, false, err
		}
		return code, true, nil
	case barrierKey:
		return 0, true, nil
	case storageKey:
		if k.barrier > 0 {
			// wiped within this view
			return common.Hash{}, true, nil
		}
		val, err := st.store.Storage(st.ctx, k.addr, k.slot)
		if err != nil {
			return nil, false, err
		}
		return val, true, nil
	}
	panic(fmt.Errorf("unexpected key type %T", key))
}

func (st *State) getAccount(addr common.Address) (*Account, error) {
	v, _, err := st.sm.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	return v.(*Account), nil
}

func (st *State) getBarrier(addr common.Address) int {
	v, _, _ := st.sm.Get(barrierKey(addr))
	return v.(int)
}

// GetBalance returns the balance of addr.
func (st *State) GetBalance(addr common.Address) (*uint256.Int, error) {
	acc, err := st.getAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(acc.Balance), nil
}

// GetNonce returns the nonce of addr.
func (st *State) GetNonce(addr common.Address) (uint64, error) {
	acc, err := st.getAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Nonce, nil
}

// GetCodeHash returns the hash of the code at addr.
func (st *State) GetCodeHash(addr common.Address) (common.Hash, error) {
	acc, err := st.getAccount(addr)
	if err != nil {
		return common.Hash{}, err
	}
	return acc.CodeHash, nil
}

// GetCode returns the code at addr.
func (st *State) GetCode(addr common.Address) ([]byte, error) {
	v, _, err := st.sm.Get(codeKey(addr))
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// GetStorage returns the value of slot in addr's storage.
func (st *State) GetStorage(addr common.Address, slot common.Hash) (common.Hash, error) {
	v, _, err := st.sm.Get(storageKey{addr, st.getBarrier(addr), slot})
	if err != nil {
		return common.Hash{}, err
	}
	return v.(common.Hash), nil
}

// Exists reports whether addr has a nonce, balance or code.
func (st *State) Exists(addr common.Address) (bool, error) {
	acc, err := st.getAccount(addr)
	if err != nil {
		return false, err
	}
	return !acc.IsEmpty(), nil
}

func (st *State) updateAccount(addr common.Address, update func(acc *Account) error) error {
	acc, err := st.getAccount(addr)
	if err != nil {
		return err
	}
	cpy := acc.copy()
	if err := update(cpy); err != nil {
		return err
	}
	st.sm.Put(accountKey(addr), cpy)
	return nil
}

// SetBalance sets the balance of addr.
func (st *State) SetBalance(addr common.Address, balance *uint256.Int) error {
	return st.updateAccount(addr, func(acc *Account) error {
		acc.Balance.Set(balance)
		return nil
	})
}

// AddBalance credits addr.
func (st *State) AddBalance(addr common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		// still touch, so the account is recorded
		return st.updateAccount(addr, func(*Account) error { return nil })
	}
	return st.updateAccount(addr, func(acc *Account) error {
		acc.Balance.Add(acc.Balance, amount)
		return nil
	})
}

// SubBalance debits addr, failing without effect when the balance is short.
func (st *State) SubBalance(addr common.Address, amount *uint256.Int) error {
	return st.updateAccount(addr, func(acc *Account) error {
		if acc.Balance.Lt(amount) {
			return ErrInsufficientBalance
		}
		acc.Balance.Sub(acc.Balance, amount)
		return nil
	})
}

// SetNonce sets the nonce of addr.
func (st *State) SetNonce(addr common.Address, nonce uint64) error {
	return st.updateAccount(addr, func(acc *Account) error {
		acc.Nonce = nonce
		return nil
	})
}

// SetCode deploys code at addr.
func (st *State) SetCode(addr common.Address, code []byte) error {
	if err := st.updateAccount(addr, func(acc *Account) error {
		if len(code) == 0 {
			acc.CodeHash = types.EmptyCodeHash
		} else {
			acc.CodeHash = crypto.Keccak256Hash(code)
		}
		return nil
	}); err != nil {
		return err
	}
	st.sm.Put(codeKey(addr), code)
	return nil
}

// SetStorage writes one slot of addr's storage.
func (st *State) SetStorage(addr common.Address, slot, val common.Hash) {
	st.sm.Put(storageKey{addr, st.getBarrier(addr), slot}, val)
}

// Destruct wipes addr: account, code and every storage slot.
func (st *State) Destruct(addr common.Address) {
	st.sm.Put(accountKey(addr), emptyAccount())
	st.sm.Put(codeKey(addr), []byte(nil))
	st.sm.Put(barrierKey(addr), st.getBarrier(addr)+1)
}

// Checkpoint opens a nested scope and returns its handle.
func (st *State) Checkpoint() int {
	return st.sm.Push()
}

// Commit keeps the writes made since cp was taken and closes the scope.
// Handles taken after cp become invalid.
func (st *State) Commit(cp int) {
	st.sm.Squash(cp)
}

// Rollback discards every write made since cp was taken.
func (st *State) Rollback(cp int) {
	st.sm.PopTo(cp)
}

// Journal returns all writes still in effect, oldest first.
func (st *State) Journal() Journal {
	return st.sm.Journal()
}

// Root returns the state root the store would have after applying this
// view's journal. The store is not modified.
func (st *State) Root() common.Hash {
	o := st.store.overlay.clone(false)
	o.apply(st.Journal(), true)
	return o.root()
}

// Apply writes a journal into the store.
func (s *Store) Apply(j Journal) {
	s.overlay.apply(j, false)
}

// apply replays j. With cow set, inner storage maps are copied before
// their first write, so shared maps stay untouched.
func (o *overlay) apply(j Journal, cow bool) {
	var (
		copied = make(map[common.Address]bool)
		codes  = make(map[common.Address][]byte)
	)
	slots := func(addr common.Address) map[common.Hash]common.Hash {
		m, ok := o.storage[addr]
		switch {
		case !ok:
			m = make(map[common.Hash]common.Hash)
			o.storage[addr] = m
			copied[addr] = true
		case cow && !copied[addr]:
			m = maps.Clone(m)
			o.storage[addr] = m
			copied[addr] = true
		}
		return m
	}

	for _, e := range j {
		switch k := e.Key.(type) {
		case accountKey:
			o.accounts[common.Address(k)] = e.Value.(*Account)
		case codeKey:
			codes[common.Address(k)] = e.Value.([]byte)
		case barrierKey:
			delete(o.storage, common.Address(k))
			delete(copied, common.Address(k))
			o.cleared[common.Address(k)] = true
		case storageKey:
			slots(k.addr)[k.slot] = e.Value.(common.Hash)
		}
	}
	for _, code := range codes {
		if len(code) > 0 {
			o.codes[crypto.Keccak256Hash(code)] = code
		}
	}
}
