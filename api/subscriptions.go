// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pborman/uuid"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/node"
	"github.com/vechain/devnode/txpool"
)

const (
	subNewHeads     = "newHeads"
	subLogs         = "logs"
	subPendingTxs   = "newPendingTransactions"
	notifySubMethod = "eth_subscription"
)

type subscriptionResult struct {
	ID     string `json:"subscription"`
	Result any    `json:"result"`
}

type subscriptionNotification struct {
	Version string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  subscriptionResult `json:"params"`
}

type subscription struct {
	id     string
	kind   string
	conn   *conn
	hub    *hub
	filter *chain.LogFilter
	fullTx bool
	queue  chan any
	ready  chan struct{}
	quit   chan struct{}
	once   sync.Once
}

func (sub *subscription) stopped() bool {
	select {
	case <-sub.quit:
		return true
	default:
		return false
	}
}

func (sub *subscription) stop() {
	sub.once.Do(func() {
		sub.hub.remove(sub.id)
		close(sub.quit)
	})
}

// pump forwards queued results to the client in order, once the reply
// carrying the subscription id is out.
func (sub *subscription) pump() {
	select {
	case <-sub.ready:
	case <-sub.quit:
		return
	case <-sub.conn.ctx.Done():
		return
	}
	for {
		select {
		case <-sub.quit:
			return
		case <-sub.conn.ctx.Done():
			return
		case result := <-sub.queue:
			err := sub.conn.write(&subscriptionNotification{
				Version: vsn,
				Method:  notifySubMethod,
				Params:  subscriptionResult{ID: sub.id, Result: result},
			})
			if err != nil {
				logger.Debug("failed to notify subscriber", "id", sub.id, "err", err)
				return
			}
		}
	}
}

// hub fans chain and pool events out to subscriptions. Each subscription
// has a bounded queue; one that falls behind is dropped.
type hub struct {
	mu   sync.RWMutex
	subs map[string]*subscription
}

func newHub() *hub {
	return &hub{subs: make(map[string]*subscription)}
}

func (h *hub) add(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub.id] = sub
	metricSubscriptions().Add(1)
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[id]; ok {
		delete(h.subs, id)
		metricSubscriptions().Add(-1)
	}
}

func (h *hub) snapshot() []*subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	subs := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (h *hub) run(ctx context.Context, n *node.Node) {
	chainCh := make(chan *node.ChainEvent, 64)
	chainSub := n.SubscribeChainEvent(chainCh)
	defer chainSub.Unsubscribe()

	txCh := make(chan *txpool.TxEvent, 256)
	txSub := n.SubscribeTxEvent(txCh)
	defer txSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-chainSub.Err():
			return
		case ev := <-chainCh:
			h.onChainEvent(ev)
		case ev := <-txCh:
			h.onTxEvent(ev)
		}
	}
}

func (h *hub) onChainEvent(ev *node.ChainEvent) {
	var header map[string]any
	for _, sub := range h.snapshot() {
		switch sub.kind {
		case subNewHeads:
			if header == nil {
				header = marshalHeader(ev.Entry.Block.Header())
			}
			h.deliver(sub, header)
		case subLogs:
			for _, receipt := range ev.Entry.Receipts {
				for _, log := range receipt.Logs {
					if sub.filter.Match(log) {
						h.deliver(sub, log)
					}
				}
			}
		}
	}
}

func (h *hub) onTxEvent(ev *txpool.TxEvent) {
	for _, sub := range h.snapshot() {
		if sub.kind != subPendingTxs {
			continue
		}
		if sub.fullTx {
			h.deliver(sub, newRPCTransaction(ev.Tx, ev.Sender, nil, 0))
		} else {
			h.deliver(sub, ev.Tx.Hash())
		}
	}
}

func (h *hub) deliver(sub *subscription, result any) {
	if sub.stopped() {
		return
	}
	select {
	case sub.queue <- result:
	default:
		logger.Warn("subscriber too slow, dropping subscription", "id", sub.id, "kind", sub.kind)
		metricDroppedSubs().AddWithLabel(1, map[string]string{"kind": sub.kind})
		sub.conn.removeSub(sub.id)
		sub.stop()
	}
}

func (s *Server) subscribe(_ context.Context, c *conn, kind string, opts json.RawMessage) (string, error) {
	if c.write == nil {
		return "", &jsonError{Code: errCodeMethodNotFound, Message: "notifications not supported"}
	}
	sub := &subscription{
		id:    hexutil.Encode(uuid.NewRandom()),
		kind:  kind,
		conn:  c,
		hub:   s.hub,
		queue: make(chan any, s.opts.SubscriptionQueue),
		ready: make(chan struct{}),
		quit:  make(chan struct{}),
	}
	hasOpts := len(opts) > 0 && string(opts) != "null"
	switch kind {
	case subNewHeads:
	case subLogs:
		sub.filter = &chain.LogFilter{}
		if hasOpts {
			var q filterQuery
			if err := json.Unmarshal(opts, &q); err != nil {
				return "", invalidParams("invalid logs filter: %v", err)
			}
			sub.filter.Addresses, sub.filter.Topics = q.Addresses, q.Topics
		}
	case subPendingTxs:
		if hasOpts {
			if err := json.Unmarshal(opts, &sub.fullTx); err != nil {
				return "", invalidParams("invalid option: %v", err)
			}
		}
	default:
		return "", invalidParams("unsupported subscription kind %q", kind)
	}

	s.hub.add(sub)
	if !c.addSub(sub) {
		sub.stop()
		return "", &jsonError{Code: errCodeServer, Message: "connection closed"}
	}
	s.goes.Go(sub.pump)
	logger.Debug("subscribed", "id", sub.id, "kind", kind, "transport", c.transport)
	return sub.id, nil
}

func (s *Server) unsubscribe(_ context.Context, c *conn, id string) (bool, error) {
	sub, ok := c.removeSub(id)
	if !ok {
		return false, nil
	}
	sub.stop()
	return true, nil
}
