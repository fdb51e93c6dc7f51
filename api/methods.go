// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"
	"encoding/json"
)

// method is an entry of the dispatch table. Arguments are positional;
// the first required ones must be present, the rest decode to zero values.
type method struct {
	arity    int
	required int
	call     func(ctx context.Context, c *conn, args []json.RawMessage) (any, error)
}

func decodeArg(args []json.RawMessage, i int, v any) error {
	if i >= len(args) {
		return nil
	}
	if err := json.Unmarshal(args[i], v); err != nil {
		return invalidParams("invalid argument %d: %v", i, err)
	}
	return nil
}

func fn0[R any](f func(context.Context) (R, error)) method {
	return method{
		call: func(ctx context.Context, _ *conn, _ []json.RawMessage) (any, error) {
			return f(ctx)
		},
	}
}

func fn1[A, R any](required int, f func(context.Context, A) (R, error)) method {
	return method{
		arity:    1,
		required: required,
		call: func(ctx context.Context, _ *conn, args []json.RawMessage) (any, error) {
			var a A
			if err := decodeArg(args, 0, &a); err != nil {
				return nil, err
			}
			return f(ctx, a)
		},
	}
}

func fn2[A, B, R any](required int, f func(context.Context, A, B) (R, error)) method {
	return method{
		arity:    2,
		required: required,
		call: func(ctx context.Context, _ *conn, args []json.RawMessage) (any, error) {
			var (
				a A
				b B
			)
			if err := decodeArg(args, 0, &a); err != nil {
				return nil, err
			}
			if err := decodeArg(args, 1, &b); err != nil {
				return nil, err
			}
			return f(ctx, a, b)
		},
	}
}

func fn3[A, B, C, R any](required int, f func(context.Context, A, B, C) (R, error)) method {
	return method{
		arity:    3,
		required: required,
		call: func(ctx context.Context, _ *conn, args []json.RawMessage) (any, error) {
			var (
				a A
				b B
				c C
			)
			if err := decodeArg(args, 0, &a); err != nil {
				return nil, err
			}
			if err := decodeArg(args, 1, &b); err != nil {
				return nil, err
			}
			if err := decodeArg(args, 2, &c); err != nil {
				return nil, err
			}
			return f(ctx, a, b, c)
		},
	}
}

// connFn1 is fn1 for methods bound to the calling connection.
func connFn1[A, R any](required int, f func(context.Context, *conn, A) (R, error)) method {
	return method{
		arity:    1,
		required: required,
		call: func(ctx context.Context, c *conn, args []json.RawMessage) (any, error) {
			var a A
			if err := decodeArg(args, 0, &a); err != nil {
				return nil, err
			}
			return f(ctx, c, a)
		},
	}
}

// connFn2 is fn2 for methods bound to the calling connection.
func connFn2[A, B, R any](required int, f func(context.Context, *conn, A, B) (R, error)) method {
	return method{
		arity:    2,
		required: required,
		call: func(ctx context.Context, c *conn, args []json.RawMessage) (any, error) {
			var (
				a A
				b B
			)
			if err := decodeArg(args, 0, &a); err != nil {
				return nil, err
			}
			if err := decodeArg(args, 1, &b); err != nil {
				return nil, err
			}
			return f(ctx, c, a, b)
		},
	}
}

func (s *Server) methodTable() map[string]method {
	return map[string]method{
		"web3_clientVersion": fn0(s.clientVersion),
		"net_version":        fn0(s.netVersion),
		"net_listening":      fn0(s.netListening),

		"eth_chainId":               fn0(s.chainID),
		"eth_blockNumber":           fn0(s.blockNumber),
		"eth_accounts":              fn0(s.accounts),
		"eth_gasPrice":              fn0(s.gasPrice),
		"eth_maxPriorityFeePerGas":  fn0(s.maxPriorityFeePerGas),
		"eth_syncing":               fn0(s.syncing),
		"eth_getBalance":            fn2(1, s.getBalance),
		"eth_getTransactionCount":   fn2(1, s.getTransactionCount),
		"eth_getCode":               fn2(1, s.getCode),
		"eth_getStorageAt":          fn3(2, s.getStorageAt),
		"eth_getBlockByNumber":      fn2(1, s.getBlockByNumber),
		"eth_getBlockByHash":        fn2(1, s.getBlockByHash),
		"eth_getTransactionByHash":  fn1(1, s.getTransactionByHash),
		"eth_getTransactionReceipt": fn1(1, s.getTransactionReceipt),
		"eth_getBlockReceipts":      fn1(1, s.getBlockReceipts),
		"eth_getLogs":               fn1(1, s.getLogs),
		"eth_call":                  fn2(1, s.ethCall),
		"eth_estimateGas":           fn2(1, s.estimateGas),
		"eth_sendTransaction":       fn1(1, s.sendTransaction),
		"eth_sendRawTransaction":    fn1(1, s.sendRawTransaction),
		"eth_subscribe":             connFn2(1, s.subscribe),
		"eth_unsubscribe":           connFn1(1, s.unsubscribe),

		"txpool_content": fn0(s.txpoolContent),
		"txpool_status":  fn0(s.txpoolStatus),

		"evm_mine":                  fn1(0, s.evmMine),
		"anvil_mine":                fn2(0, s.anvilMine),
		"evm_snapshot":              fn0(s.snapshot),
		"evm_revert":                fn1(1, s.revert),
		"evm_setAutomine":           fn1(1, s.setAutomine),
		"evm_setIntervalMining":     fn1(1, s.setIntervalMining),
		"anvil_getAutomine":         fn0(s.getAutomine),
		"anvil_getIntervalMining":   fn0(s.getIntervalMining),
		"evm_increaseTime":          fn1(1, s.increaseTime),
		"evm_setNextBlockTimestamp": fn1(1, s.setNextBlockTimestamp),
		"evm_setTime":               fn1(1, s.setTime),
		"evm_setBlockGasLimit":      fn1(1, s.setBlockGasLimit),

		"anvil_setBlockTimestampInterval":    fn1(1, s.setBlockTimestampInterval),
		"anvil_removeBlockTimestampInterval": fn0(s.removeBlockTimestampInterval),
		"anvil_setBalance":                   fn2(2, s.setBalance),
		"anvil_setNonce":                     fn2(2, s.setNonce),
		"anvil_setCode":                      fn2(2, s.setCode),
		"anvil_setStorageAt":                 fn3(3, s.setStorageAt),
		"anvil_impersonateAccount":           fn1(1, s.impersonate),
		"anvil_stopImpersonatingAccount":     fn1(1, s.stopImpersonating),
		"anvil_autoImpersonateAccount":       fn1(1, s.autoImpersonate),
		"anvil_setNextBlockBaseFeePerGas":    fn1(1, s.setNextBaseFee),
		"anvil_setCoinbase":                  fn1(1, s.setCoinbase),
		"anvil_dropTransaction":              fn1(1, s.dropTransaction),
		"anvil_dropAllTransactions":          fn0(s.dropAllTransactions),
		"anvil_reset":                        fn1(0, s.reset),
		"anvil_dumpState":                    fn0(s.dumpState),
		"anvil_loadState":                    fn1(1, s.loadState),
		"anvil_nodeInfo":                     fn0(s.nodeInfo),
	}
}
