// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

type hashedEntry[T any] struct {
	key   common.Hash
	value T
}

func sortHashed[T any](entries []hashedEntry[T]) {
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key[:], entries[j].key[:]) < 0
	})
}

// Root returns the root of the local overlay. Remote accounts that were
// only read do not contribute.
func (s *Store) Root() common.Hash {
	return s.overlay.root()
}

func (o *overlay) root() common.Hash {
	addrs := make(map[common.Address]struct{}, len(o.accounts))
	for addr := range o.accounts {
		addrs[addr] = struct{}{}
	}
	for addr := range o.storage {
		addrs[addr] = struct{}{}
	}

	entries := make([]hashedEntry[common.Address], 0, len(addrs))
	for addr := range addrs {
		entries = append(entries, hashedEntry[common.Address]{crypto.Keccak256Hash(addr[:]), addr})
	}
	sortHashed(entries)

	st := trie.NewStackTrie(nil)
	for _, e := range entries {
		acc, ok := o.accounts[e.value]
		if !ok {
			acc = emptyAccount()
		}
		codeHash := acc.CodeHash
		if codeHash == (common.Hash{}) {
			codeHash = types.EmptyCodeHash
		}
		enc, err := rlp.EncodeToBytes(&types.StateAccount{
			Nonce:    acc.Nonce,
			Balance:  acc.Balance,
			Root:     storageRoot(o.storage[e.value]),
			CodeHash: codeHash[:],
		})
		if err != nil {
			panic(err)
		}
		if err := st.Update(e.key[:], enc); err != nil {
			panic(err)
		}
	}
	return st.Hash()
}

func storageRoot(slots map[common.Hash]common.Hash) common.Hash {
	entries := make([]hashedEntry[common.Hash], 0, len(slots))
	for slot, val := range slots {
		if val == (common.Hash{}) {
			continue
		}
		entries = append(entries, hashedEntry[common.Hash]{crypto.Keccak256Hash(slot[:]), val})
	}
	if len(entries) == 0 {
		return types.EmptyRootHash
	}
	sortHashed(entries)

	st := trie.NewStackTrie(nil)
	for _, e := range entries {
		enc, err := rlp.EncodeToBytes(common.TrimLeftZeroes(e.value[:]))
		if err != nil {
			panic(err)
		}
		if err := st.Update(e.key[:], enc); err != nil {
			panic(err)
		}
	}
	return st.Hash()
}
