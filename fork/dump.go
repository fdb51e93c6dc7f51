// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// CachedAccount is the serialized form of a cached remote account.
type CachedAccount struct {
	Address common.Address `json:"address"`
	Nonce   hexutil.Uint64 `json:"nonce"`
	Balance *hexutil.U256  `json:"balance"`
	Code    hexutil.Bytes  `json:"code,omitempty"`
}

// CachedSlot is the serialized form of a cached remote storage slot.
type CachedSlot struct {
	Address common.Address `json:"address"`
	Slot    common.Hash    `json:"slot"`
	Value   common.Hash    `json:"value"`
}

// Snapshot is everything fetched so far for the current pin.
type Snapshot struct {
	Config   Config          `json:"config"`
	Accounts []CachedAccount `json:"accounts"`
	Storage  []CachedSlot    `json:"storage"`
	Headers  []*types.Header `json:"headers"`
}

// Export returns the in-memory cache in a deterministic order.
func (b *Backend) Export() *Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := &Snapshot{Config: b.sess.cfg}
	for addr, acc := range b.accounts {
		snap.Accounts = append(snap.Accounts, CachedAccount{
			Address: addr,
			Nonce:   hexutil.Uint64(acc.Nonce),
			Balance: (*hexutil.U256)(acc.Balance),
			Code:    acc.Code,
		})
	}
	for key, val := range b.storage {
		snap.Storage = append(snap.Storage, CachedSlot{Address: key.addr, Slot: key.slot, Value: val})
	}
	for _, h := range b.headers {
		snap.Headers = append(snap.Headers, h)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool {
		return snap.Accounts[i].Address.Cmp(snap.Accounts[j].Address) < 0
	})
	sort.Slice(snap.Storage, func(i, j int) bool {
		if c := snap.Storage[i].Address.Cmp(snap.Storage[j].Address); c != 0 {
			return c < 0
		}
		return snap.Storage[i].Slot.Cmp(snap.Storage[j].Slot) < 0
	})
	sort.Slice(snap.Headers, func(i, j int) bool {
		return snap.Headers[i].Number.Cmp(snap.Headers[j].Number) < 0
	})
	return snap
}

// Import seeds the in-memory cache. Entries are only meaningful for the
// pin they were exported from, which the caller must have restored.
func (b *Backend) Import(snap *Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range snap.Accounts {
		bal := new(uint256.Int)
		if a.Balance != nil {
			bal = (*uint256.Int)(a.Balance)
		}
		b.accounts[a.Address] = &Account{Nonce: uint64(a.Nonce), Balance: bal, Code: a.Code}
	}
	for _, s := range snap.Storage {
		b.storage[storageKey{s.Address, s.Slot}] = s.Value
	}
	for _, h := range snap.Headers {
		b.headers[h.Number.Uint64()] = h
	}
}
