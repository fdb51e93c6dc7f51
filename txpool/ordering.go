// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"container/heap"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type headTx struct {
	obj   *TxObject
	price *big.Int
}

// byPriceAndSeq is a max-heap on effective price, ties broken by admission order.
type byPriceAndSeq []*headTx

func (s byPriceAndSeq) Len() int { return len(s) }
func (s byPriceAndSeq) Less(i, j int) bool {
	if cmp := s[i].price.Cmp(s[j].price); cmp != 0 {
		return cmp > 0
	}
	return s[i].obj.seq < s[j].obj.seq
}
func (s byPriceAndSeq) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *byPriceAndSeq) Push(x any) { *s = append(*s, x.(*headTx)) }

func (s *byPriceAndSeq) Pop() any {
	old := *s
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*s = old[:n-1]
	return x
}

// ordering yields txs sender by sender in nonce order, picking across
// senders by price.
type ordering struct {
	txs     map[common.Address][]*TxObject
	heads   byPriceAndSeq
	baseFee *big.Int
}

// newOrdering takes ownership of runs, each a nonce sorted executable run.
func newOrdering(runs map[common.Address][]*TxObject, baseFee *big.Int) *ordering {
	o := &ordering{
		txs:     runs,
		heads:   make(byPriceAndSeq, 0, len(runs)),
		baseFee: baseFee,
	}
	for sender, txs := range runs {
		head, ok := o.wrap(txs[0])
		if !ok {
			delete(runs, sender)
			continue
		}
		o.heads = append(o.heads, head)
		runs[sender] = txs[1:]
	}
	heap.Init(&o.heads)
	return o
}

// wrap fails when the fee cap cannot pay the base fee.
func (o *ordering) wrap(obj *TxObject) (*headTx, bool) {
	if o.baseFee != nil && obj.GasFeeCap().Cmp(o.baseFee) < 0 {
		return nil, false
	}
	return &headTx{obj: obj, price: obj.EffectiveGasPrice(o.baseFee)}, true
}

// Peek returns the next tx, or nil when exhausted.
func (o *ordering) Peek() *TxObject {
	if len(o.heads) == 0 {
		return nil
	}
	return o.heads[0].obj
}

// Shift replaces the current head with the next tx of the same sender.
func (o *ordering) Shift() {
	sender := o.heads[0].obj.sender
	if txs := o.txs[sender]; len(txs) > 0 {
		if head, ok := o.wrap(txs[0]); ok {
			o.heads[0], o.txs[sender] = head, txs[1:]
			heap.Fix(&o.heads, 0)
			return
		}
	}
	heap.Pop(&o.heads)
}
