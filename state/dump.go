// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// DumpAccount is the serialized account record.
type DumpAccount struct {
	Nonce   hexutil.Uint64 `json:"nonce"`
	Balance *hexutil.U256  `json:"balance"`
	// Code is omitted when the account points at code held by the origin.
	Code     hexutil.Bytes `json:"code,omitempty"`
	CodeHash common.Hash   `json:"codeHash"`
}

// DumpEntry is everything written locally for one address.
type DumpEntry struct {
	Account *DumpAccount                `json:"account,omitempty"`
	Storage map[common.Hash]common.Hash `json:"storage,omitempty"`
	Cleared bool                        `json:"cleared,omitempty"`
}

// Dump returns the local overlay.
func (s *Store) Dump() map[common.Address]*DumpEntry {
	out := make(map[common.Address]*DumpEntry)
	entry := func(addr common.Address) *DumpEntry {
		e, ok := out[addr]
		if !ok {
			e = &DumpEntry{}
			out[addr] = e
		}
		return e
	}
	for addr, acc := range s.accounts {
		entry(addr).Account = &DumpAccount{
			Nonce:    hexutil.Uint64(acc.Nonce),
			Balance:  (*hexutil.U256)(new(uint256.Int).Set(acc.Balance)),
			Code:     s.codes[acc.CodeHash],
			CodeHash: acc.CodeHash,
		}
	}
	for addr, slots := range s.storage {
		e := entry(addr)
		e.Storage = make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			e.Storage[k] = v
		}
	}
	for addr := range s.cleared {
		entry(addr).Cleared = true
	}
	return out
}

// Load replaces the local overlay with a dump.
func (s *Store) Load(dump map[common.Address]*DumpEntry) {
	o := newOverlay()
	for addr, e := range dump {
		if a := e.Account; a != nil {
			acc := &Account{Nonce: uint64(a.Nonce), Balance: new(uint256.Int), CodeHash: a.CodeHash}
			if a.Balance != nil {
				acc.Balance.Set((*uint256.Int)(a.Balance))
			}
			if len(a.Code) > 0 {
				acc.CodeHash = crypto.Keccak256Hash(a.Code)
				o.codes[acc.CodeHash] = a.Code
			} else if acc.CodeHash == (common.Hash{}) {
				acc.CodeHash = types.EmptyCodeHash
			}
			o.accounts[addr] = acc
		}
		if len(e.Storage) > 0 {
			slots := make(map[common.Hash]common.Hash, len(e.Storage))
			for k, v := range e.Storage {
				slots[k] = v
			}
			o.storage[addr] = slots
		}
		if e.Cleared {
			o.cleared[addr] = true
		}
	}
	s.overlay = o
}
