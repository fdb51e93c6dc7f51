// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fork

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Disk entries are keyed by chain id and pinned block, which never change
// meaning, so they stay valid across restarts and re-pins.
const (
	kindAccount byte = 'a'
	kindStorage byte = 's'
	kindHeader  byte = 'h'
)

type diskAccount struct {
	Nonce   uint64
	Balance *big.Int
	Code    []byte
}

func diskKey(s session, kind byte, parts ...[]byte) []byte {
	key := make([]byte, 0, 17+20+32)
	key = binary.BigEndian.AppendUint64(key, s.cfg.ChainID)
	key = binary.BigEndian.AppendUint64(key, s.cfg.BlockNumber)
	key = append(key, kind)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func (b *Backend) diskGet(key []byte) ([]byte, bool) {
	if b.disk == nil {
		return nil, false
	}
	val, err := b.disk.Get(key)
	if err != nil {
		if !b.disk.IsNotFound(err) {
			logger.Warn("disk cache read failed", "err", err)
		}
		return nil, false
	}
	return val, true
}

func (b *Backend) diskPut(key, val []byte) {
	if b.disk == nil {
		return
	}
	if err := b.disk.Put(key, val); err != nil {
		logger.Warn("disk cache write failed", "err", err)
	}
}

func (b *Backend) diskAccount(s session, addr common.Address) (*Account, bool) {
	raw, ok := b.diskGet(diskKey(s, kindAccount, addr[:]))
	if !ok {
		return nil, false
	}
	var da diskAccount
	if err := rlp.DecodeBytes(raw, &da); err != nil {
		return nil, false
	}
	bal, _ := uint256.FromBig(da.Balance)
	return &Account{Nonce: da.Nonce, Balance: bal, Code: da.Code}, true
}

func (b *Backend) putDiskAccount(s session, addr common.Address, acc *Account) {
	if b.disk == nil {
		return
	}
	raw, err := rlp.EncodeToBytes(&diskAccount{acc.Nonce, acc.Balance.ToBig(), acc.Code})
	if err != nil {
		return
	}
	b.diskPut(diskKey(s, kindAccount, addr[:]), raw)
}

func (b *Backend) diskStorage(s session, addr common.Address, slot common.Hash) (common.Hash, bool) {
	raw, ok := b.diskGet(diskKey(s, kindStorage, addr[:], slot[:]))
	if !ok {
		return common.Hash{}, false
	}
	return common.BytesToHash(raw), true
}

func (b *Backend) putDiskStorage(s session, addr common.Address, slot, val common.Hash) {
	b.diskPut(diskKey(s, kindStorage, addr[:], slot[:]), val[:])
}

func (b *Backend) diskHeader(s session, number uint64) (*types.Header, bool) {
	raw, ok := b.diskGet(diskKey(s, kindHeader, binary.BigEndian.AppendUint64(nil, number)))
	if !ok {
		return nil, false
	}
	var h types.Header
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return nil, false
	}
	return &h, true
}

func (b *Backend) putDiskHeader(s session, number uint64, h *types.Header) {
	if b.disk == nil {
		return
	}
	raw, err := rlp.EncodeToBytes(h)
	if err != nil {
		return
	}
	b.diskPut(diskKey(s, kindHeader, binary.BigEndian.AppendUint64(nil, number)), raw)
}
