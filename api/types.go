// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/node"
)

// quantity is an unsigned integer given as a JSON number, a hex string or
// a decimal string.
type quantity uint64

func (q *quantity) UnmarshalJSON(input []byte) error {
	input = bytes.TrimSpace(input)
	if len(input) > 0 && input[0] != '"' {
		v, err := strconv.ParseUint(string(input), 10, 64)
		if err != nil {
			return errors.Wrap(err, "quantity")
		}
		*q = quantity(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return err
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeUint64(s)
		if err != nil {
			return err
		}
		*q = quantity(v)
		return nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errors.Wrap(err, "quantity")
	}
	*q = quantity(v)
	return nil
}

// word is a 32-byte value given as hex of any length up to 32 bytes.
type word common.Hash

func (w *word) UnmarshalJSON(input []byte) error {
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return err
	}
	if !strings.HasPrefix(s, "0x") {
		return errors.New("hex string without 0x prefix")
	}
	s = s[2:]
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return err
	}
	if len(b) > common.HashLength {
		return errors.Errorf("value longer than %d bytes", common.HashLength)
	}
	*w = word(common.BytesToHash(b))
	return nil
}

// transactionArgs is the JSON form of node.TxArgs.
type transactionArgs struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
}

func (a *transactionArgs) toTxArgs() (node.TxArgs, error) {
	if a.Data != nil && a.Input != nil && !bytes.Equal(*a.Data, *a.Input) {
		return node.TxArgs{}, invalidParams(`both "data" and "input" are set and not equal`)
	}
	if a.GasPrice != nil && (a.MaxFeePerGas != nil || a.MaxPriorityFeePerGas != nil) {
		return node.TxArgs{}, invalidParams("both gasPrice and (maxFeePerGas or maxPriorityFeePerGas) specified")
	}
	args := node.TxArgs{
		To:                   a.To,
		GasPrice:             a.GasPrice.ToInt(),
		MaxFeePerGas:         a.MaxFeePerGas.ToInt(),
		MaxPriorityFeePerGas: a.MaxPriorityFeePerGas.ToInt(),
		Value:                a.Value.ToInt(),
	}
	if a.From != nil {
		args.From = *a.From
	}
	if a.Gas != nil {
		gas := uint64(*a.Gas)
		args.Gas = &gas
	}
	if a.Nonce != nil {
		nonce := uint64(*a.Nonce)
		args.Nonce = &nonce
	}
	switch {
	case a.Input != nil:
		args.Data = *a.Input
	case a.Data != nil:
		args.Data = *a.Data
	}
	return args, nil
}

// rpcTransaction is the JSON form of a transaction, pooled or mined.
type rpcTransaction struct {
	BlockHash            *common.Hash      `json:"blockHash"`
	BlockNumber          *hexutil.Big      `json:"blockNumber"`
	From                 common.Address    `json:"from"`
	Gas                  hexutil.Uint64    `json:"gas"`
	GasPrice             *hexutil.Big      `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas,omitempty"`
	Hash                 common.Hash       `json:"hash"`
	Input                hexutil.Bytes     `json:"input"`
	Nonce                hexutil.Uint64    `json:"nonce"`
	To                   *common.Address   `json:"to"`
	TransactionIndex     *hexutil.Uint64   `json:"transactionIndex"`
	Value                *hexutil.Big      `json:"value"`
	Type                 hexutil.Uint64    `json:"type"`
	Accesses             *types.AccessList `json:"accessList,omitempty"`
	ChainID              *hexutil.Big      `json:"chainId,omitempty"`
	V                    *hexutil.Big      `json:"v"`
	R                    *hexutil.Big      `json:"r"`
	S                    *hexutil.Big      `json:"s"`
	YParity              *hexutil.Uint64   `json:"yParity,omitempty"`
}

// newRPCTransaction renders tx. A nil block renders a pooled transaction.
func newRPCTransaction(tx *types.Transaction, sender common.Address, block *types.Block, index int) *rpcTransaction {
	v, r, s := tx.RawSignatureValues()
	result := &rpcTransaction{
		Type:     hexutil.Uint64(tx.Type()),
		From:     sender,
		Gas:      hexutil.Uint64(tx.Gas()),
		GasPrice: (*hexutil.Big)(tx.GasPrice()),
		Hash:     tx.Hash(),
		Input:    tx.Data(),
		Nonce:    hexutil.Uint64(tx.Nonce()),
		To:       tx.To(),
		Value:    (*hexutil.Big)(tx.Value()),
		V:        (*hexutil.Big)(v),
		R:        (*hexutil.Big)(r),
		S:        (*hexutil.Big)(s),
	}
	if block != nil {
		hash := block.Hash()
		idx := hexutil.Uint64(index)
		result.BlockHash = &hash
		result.BlockNumber = (*hexutil.Big)(block.Number())
		result.TransactionIndex = &idx
	}
	switch tx.Type() {
	case types.LegacyTxType:
		if id := tx.ChainId(); id.Sign() != 0 {
			result.ChainID = (*hexutil.Big)(id)
		}
	case types.AccessListTxType, types.DynamicFeeTxType:
		al := tx.AccessList()
		yparity := hexutil.Uint64(v.Sign())
		result.Accesses = &al
		result.ChainID = (*hexutil.Big)(tx.ChainId())
		result.YParity = &yparity
		if tx.Type() == types.DynamicFeeTxType {
			result.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
			result.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
			if block != nil && block.BaseFee() != nil {
				result.GasPrice = (*hexutil.Big)(effectiveGasPrice(tx, block.BaseFee()))
			} else {
				result.GasPrice = (*hexutil.Big)(tx.GasFeeCap())
			}
		}
	}
	return result
}

func effectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	fee := new(big.Int).Add(tx.GasTipCap(), baseFee)
	if tx.GasFeeCapIntCmp(fee) < 0 {
		return tx.GasFeeCap()
	}
	return fee
}

func marshalHeader(head *types.Header) map[string]any {
	result := map[string]any{
		"number":           (*hexutil.Big)(head.Number),
		"hash":             head.Hash(),
		"parentHash":       head.ParentHash,
		"nonce":            head.Nonce,
		"mixHash":          head.MixDigest,
		"sha3Uncles":       head.UncleHash,
		"logsBloom":        head.Bloom,
		"stateRoot":        head.Root,
		"miner":            head.Coinbase,
		"difficulty":       (*hexutil.Big)(head.Difficulty),
		"extraData":        hexutil.Bytes(head.Extra),
		"gasLimit":         hexutil.Uint64(head.GasLimit),
		"gasUsed":          hexutil.Uint64(head.GasUsed),
		"timestamp":        hexutil.Uint64(head.Time),
		"transactionsRoot": head.TxHash,
		"receiptsRoot":     head.ReceiptHash,
	}
	if head.BaseFee != nil {
		result["baseFeePerGas"] = (*hexutil.Big)(head.BaseFee)
	}
	if head.WithdrawalsHash != nil {
		result["withdrawalsRoot"] = head.WithdrawalsHash
	}
	return result
}

// marshalBlock renders a block. Entries served from the fork carry no
// bodies; their transaction list is empty.
func marshalBlock(e *chain.Entry, fullTx bool) map[string]any {
	block := e.Block
	fields := marshalHeader(block.Header())
	fields["size"] = hexutil.Uint64(block.Size())

	txs := block.Transactions()
	transactions := make([]any, len(txs))
	for i, tx := range txs {
		if fullTx {
			transactions[i] = newRPCTransaction(tx, e.Senders[i], block, i)
		} else {
			transactions[i] = tx.Hash()
		}
	}
	fields["transactions"] = transactions
	fields["uncles"] = []common.Hash{}
	return fields
}

func marshalReceipt(loc *chain.TxLocation) map[string]any {
	var (
		receipt = loc.Receipt()
		tx      = loc.Tx()
		block   = loc.Entry.Block
	)
	fields := map[string]any{
		"blockHash":         block.Hash(),
		"blockNumber":       hexutil.Uint64(block.NumberU64()),
		"transactionHash":   tx.Hash(),
		"transactionIndex":  hexutil.Uint64(loc.Index),
		"from":              loc.Sender(),
		"to":                tx.To(),
		"gasUsed":           hexutil.Uint64(receipt.GasUsed),
		"cumulativeGasUsed": hexutil.Uint64(receipt.CumulativeGasUsed),
		"contractAddress":   nil,
		"logs":              receipt.Logs,
		"logsBloom":         receipt.Bloom,
		"type":              hexutil.Uint(tx.Type()),
		"effectiveGasPrice": (*hexutil.Big)(receipt.EffectiveGasPrice),
		"status":            hexutil.Uint(receipt.Status),
	}
	if receipt.Logs == nil {
		fields["logs"] = []*types.Log{}
	}
	if receipt.ContractAddress != (common.Address{}) {
		fields["contractAddress"] = receipt.ContractAddress
	}
	return fields
}
