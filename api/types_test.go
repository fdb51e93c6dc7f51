// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want quantity
		err  bool
	}{
		{`12`, 12, false},
		{`"0x10"`, 16, false},
		{`"42"`, 42, false},
		{`"0xzz"`, 0, true},
		{`-1`, 0, true},
		{`"abc"`, 0, true},
	}
	for _, tt := range tests {
		var q quantity
		err := json.Unmarshal([]byte(tt.in), &q)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, q, tt.in)
	}
}

func TestWord(t *testing.T) {
	var w word
	require.NoError(t, json.Unmarshal([]byte(`"0x1"`), &w))
	assert.Equal(t, common.BigToHash(common.Big1), common.Hash(w))
	require.NoError(t, json.Unmarshal([]byte(`"0x0000000000000000000000000000000000000000000000000000000000000abc"`), &w))
	assert.Equal(t, common.HexToHash("0xabc"), common.Hash(w))

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &w))
	assert.Error(t, json.Unmarshal([]byte(`"0x01`+strings.Repeat("00", 32)+`"`), &w))
}

func TestMineParams(t *testing.T) {
	var p mineParams
	require.NoError(t, json.Unmarshal([]byte(`"0x64"`), &p))
	require.NotNil(t, p.Timestamp)
	assert.Equal(t, quantity(100), *p.Timestamp)
	assert.Nil(t, p.Blocks)

	p = mineParams{}
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp":5,"blocks":"0x3"}`), &p))
	assert.Equal(t, quantity(5), *p.Timestamp)
	assert.Equal(t, quantity(3), *p.Blocks)
}

func TestFilterQuery(t *testing.T) {
	a := common.HexToAddress("0x1")
	t1 := common.HexToHash("0x11")
	t2 := common.HexToHash("0x22")

	var q filterQuery
	require.NoError(t, json.Unmarshal([]byte(`{
		"fromBlock": "0x1",
		"toBlock": "latest",
		"address": "`+a.Hex()+`",
		"topics": [null, "`+t1.Hex()+`", ["`+t1.Hex()+`", "`+t2.Hex()+`"], ["`+t2.Hex()+`", null]]
	}`), &q))
	assert.Equal(t, []common.Address{a}, q.Addresses)
	require.Len(t, q.Topics, 4)
	assert.Nil(t, q.Topics[0])
	assert.Equal(t, []common.Hash{t1}, q.Topics[1])
	assert.Equal(t, []common.Hash{t1, t2}, q.Topics[2])
	assert.Nil(t, q.Topics[3])

	f, err := q.resolve(9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.FromBlock)
	assert.Equal(t, uint64(9), f.ToBlock)

	q = filterQuery{}
	require.NoError(t, json.Unmarshal([]byte(`{"address":["`+a.Hex()+`"]}`), &q))
	assert.Equal(t, []common.Address{a}, q.Addresses)
	f, err = q.resolve(4)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), f.FromBlock)

	assert.Error(t, json.Unmarshal([]byte(`{"blockHash":"`+t1.Hex()+`","fromBlock":"0x1"}`), &q))

	from := rpc.BlockNumber(5)
	to := rpc.BlockNumber(2)
	_, err = (&filterQuery{FromBlock: &from, ToBlock: &to}).resolve(9)
	assert.Error(t, err)
}

func TestTransactionArgs(t *testing.T) {
	var args transactionArgs
	require.NoError(t, json.Unmarshal([]byte(`{"from":"0x0000000000000000000000000000000000000001","gas":"0x5208","input":"0xab","nonce":"0x2"}`), &args))
	txArgs, err := args.toTxArgs()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x1"), txArgs.From)
	assert.Equal(t, uint64(21000), *txArgs.Gas)
	assert.Equal(t, uint64(2), *txArgs.Nonce)
	assert.Equal(t, []byte{0xab}, txArgs.Data)

	args = transactionArgs{}
	require.NoError(t, json.Unmarshal([]byte(`{"gasPrice":"0x1","maxFeePerGas":"0x2"}`), &args))
	_, err = args.toTxArgs()
	assert.Error(t, err)
}
