// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/chain"
	"github.com/vechain/devnode/clock"
	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/state"
	"github.com/vechain/devnode/txpool"
)

type dumpTx struct {
	Raw          hexutil.Bytes  `json:"raw"`
	Sender       common.Address `json:"sender"`
	Impersonated bool           `json:"impersonated,omitempty"`
}

type dumpDoc struct {
	ChainID     hexutil.Uint64                      `json:"chainId"`
	Blocks      []hexutil.Bytes                     `json:"blocks"`
	Receipts    [][]*types.Receipt                  `json:"receipts"`
	Senders     [][]common.Address                  `json:"senders"`
	State       map[common.Address]*state.DumpEntry `json:"state"`
	Pool        []dumpTx                            `json:"pool"`
	Clock       clock.State                         `json:"clock"`
	NextBaseFee *hexutil.Big                        `json:"nextBaseFee,omitempty"`
	Coinbase    common.Address                      `json:"coinbase"`
	GasLimit    hexutil.Uint64                      `json:"gasLimit"`
	Fork        *fork.Snapshot                      `json:"fork,omitempty"`
}

// Dump serializes the whole node: local state, chain history, pool, clock
// and the data fetched from the fork so far. The result is gzipped JSON.
func (n *Node) Dump(ctx context.Context) ([]byte, error) {
	release, err := n.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	doc := dumpDoc{
		ChainID:  hexutil.Uint64(n.opts.ChainID),
		State:    n.store.Dump(),
		Clock:    n.clock.State(),
		Coinbase: n.coinbase,
		GasLimit: hexutil.Uint64(n.gasLimit),
	}
	for _, e := range n.repo.Entries() {
		raw, err := rlp.EncodeToBytes(e.Block)
		if err != nil {
			return nil, errors.Wrap(err, "encode block")
		}
		doc.Blocks = append(doc.Blocks, raw)
		doc.Receipts = append(doc.Receipts, e.Receipts)
		doc.Senders = append(doc.Senders, e.Senders)
	}
	for _, obj := range n.pool.Dump() {
		raw, err := obj.MarshalBinary()
		if err != nil {
			return nil, errors.Wrap(err, "encode tx")
		}
		doc.Pool = append(doc.Pool, dumpTx{Raw: raw, Sender: obj.Sender(), Impersonated: obj.Impersonated()})
	}
	if n.nextBaseFee != nil {
		doc.NextBaseFee = (*hexutil.Big)(n.nextBaseFee)
	}
	if n.backend != nil {
		doc.Fork = n.backend.Export()
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(&doc); err != nil {
		return nil, errors.Wrap(err, "encode dump")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "compress dump")
	}
	return buf.Bytes(), nil
}

// Load replaces the node content with a dump. Snapshots are dropped. A
// dump taken in fork mode re-forks its pin unless the node is already
// pinned there.
func (n *Node) Load(ctx context.Context, data []byte) error {
	doc, err := decodeDump(data)
	if err != nil {
		return err
	}
	if uint64(doc.ChainID) != n.opts.ChainID {
		return errors.Errorf("dump of chain %d, node runs chain %d", doc.ChainID, n.opts.ChainID)
	}
	repo, err := doc.repository()
	if err != nil {
		return err
	}
	objs, err := doc.txObjects(n.signer)
	if err != nil {
		return err
	}

	release, err := n.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	var (
		remote fork.Remote
		cfg    fork.Config
	)
	if doc.Fork != nil && !n.pinnedAt(doc.Fork.Config) {
		if remote, cfg, err = n.opts.Dialer(ctx, doc.Fork.Config); err != nil {
			return errors.WithMessage(err, "load")
		}
		if cfg.BlockNumber != doc.Fork.Config.BlockNumber || cfg.ChainID != doc.Fork.Config.ChainID {
			return errors.Errorf("load: fork resolved to chain %d block %d, dump pinned chain %d block %d",
				cfg.ChainID, cfg.BlockNumber, doc.Fork.Config.ChainID, doc.Fork.Config.BlockNumber)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	switch {
	case doc.Fork == nil:
		if n.backend != nil {
			if err := n.backend.Close(); err != nil {
				logger.Warn("failed to close fork backend", "err", err)
			}
			n.backend, n.remote = nil, nil
		}
	case remote == nil:
		// already pinned there
	case n.backend != nil:
		n.backend.Reset(cfg, remote)
		n.remote = remote
	default:
		backend, err := newBackend(cfg, remote)
		if err != nil {
			return err
		}
		n.backend, n.remote = backend, remote
	}
	if doc.Fork != nil {
		n.backend.Import(doc.Fork)
	}

	n.store.SetOrigin(origin(n.backend))
	n.store.Load(doc.State)
	n.repo = repo
	n.pool.Restore(objs)
	n.clock.Restore(doc.Clock)
	n.nextBaseFee = doc.NextBaseFee.ToInt()
	n.coinbase = doc.Coinbase
	if doc.GasLimit != 0 {
		n.gasLimit = uint64(doc.GasLimit)
		n.pool.SetBlockGasLimit(n.gasLimit)
	}
	n.snaps.Clear()

	metricBestBlock().Set(int64(repo.BestBlock().NumberU64()))
	logger.Info("state loaded", "best", repo.BestBlock().NumberU64(), "txs", len(objs), "forked", n.backend != nil)
	return nil
}

func (n *Node) pinnedAt(cfg fork.Config) bool {
	if n.backend == nil {
		return false
	}
	cur := n.backend.Config()
	return cur.URL == cfg.URL && cur.BlockNumber == cfg.BlockNumber && cur.ChainID == cfg.ChainID
}

func decodeDump(data []byte) (*dumpDoc, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decompress dump")
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrap(err, "decompress dump")
	}
	var doc dumpDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode dump")
	}
	if len(doc.Blocks) == 0 {
		return nil, errors.New("dump without blocks")
	}
	if len(doc.Receipts) != len(doc.Blocks) || len(doc.Senders) != len(doc.Blocks) {
		return nil, errors.New("dump history is inconsistent")
	}
	return &doc, nil
}

// repository rebuilds the chain, rejecting histories AddBlock would panic on.
func (d *dumpDoc) repository() (*chain.Repository, error) {
	var repo *chain.Repository
	for i, raw := range d.Blocks {
		block := new(types.Block)
		if err := rlp.DecodeBytes(raw, block); err != nil {
			return nil, errors.Wrapf(err, "decode block %d", i)
		}
		if repo == nil {
			repo = chain.NewRepository(block)
			continue
		}
		head := repo.BestBlock()
		if block.NumberU64() != head.NumberU64()+1 || block.ParentHash() != head.Hash() {
			return nil, errors.Errorf("dump block %d does not extend %d", block.NumberU64(), head.NumberU64())
		}
		txs := len(block.Transactions())
		if len(d.Receipts[i]) != txs || len(d.Senders[i]) != txs {
			return nil, errors.Errorf("dump block %d: %d txs, %d receipts, %d senders",
				block.NumberU64(), txs, len(d.Receipts[i]), len(d.Senders[i]))
		}
		repo.AddBlock(block, d.Receipts[i], d.Senders[i])
	}
	return repo, nil
}

func (d *dumpDoc) txObjects(signer types.Signer) ([]*txpool.TxObject, error) {
	objs := make([]*txpool.TxObject, 0, len(d.Pool))
	for i, dt := range d.Pool {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(dt.Raw); err != nil {
			return nil, errors.Wrapf(err, "decode pooled tx %d", i)
		}
		if dt.Impersonated {
			objs = append(objs, txpool.ImpersonatedTx(tx, dt.Sender))
			continue
		}
		obj, err := txpool.ResolveTx(signer, tx)
		if err != nil {
			return nil, errors.WithMessagef(err, "pooled tx %d", i)
		}
		objs = append(objs, obj)
	}
	return objs, nil
}
