// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"

	"github.com/vechain/devnode/fork"
	"github.com/vechain/devnode/node"
)

const (
	vsn = "2.0"

	errCodeParse          = -32700
	errCodeInvalidRequest = -32600
	errCodeMethodNotFound = -32601
	errCodeInvalidParams  = -32602
	errCodeInternal       = -32603
	errCodeServer         = -32000
	errCodeFork           = -32002
	errCodeReverted       = 3
)

var null = json.RawMessage("null")

type jsonrpcMessage struct {
	Version string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Error   *jsonError      `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func (msg *jsonrpcMessage) isNotification() bool {
	return msg.ID == nil && msg.Method != ""
}

func (msg *jsonrpcMessage) hasValidID() bool {
	return len(msg.ID) > 0 && msg.ID[0] != '{' && msg.ID[0] != '['
}

func (msg *jsonrpcMessage) errorResponse(err *jsonError) *jsonrpcMessage {
	return &jsonrpcMessage{Version: vsn, ID: responseID(msg.ID), Error: err}
}

func responseID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return null
	}
	return id
}

type jsonError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *jsonError) Error() string {
	if e.Message == "" {
		return "json-rpc error " + strconv.Itoa(e.Code)
	}
	return e.Message
}

func invalidParams(format string, args ...any) *jsonError {
	return &jsonError{Code: errCodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// toJSONError maps node errors onto JSON-RPC error objects.
func toJSONError(err error) *jsonError {
	var je *jsonError
	if errors.As(err, &je) {
		return je
	}
	var ee *node.ExecutionError
	if errors.As(err, &ee) {
		if revert := ee.Revert(); revert != nil {
			msg := "execution reverted"
			if reason, uerr := abi.UnpackRevert(revert); uerr == nil {
				msg += ": " + reason
			}
			return &jsonError{Code: errCodeReverted, Message: msg, Data: hexutil.Bytes(revert)}
		}
		return &jsonError{Code: errCodeServer, Message: ee.Error()}
	}
	switch {
	case fork.IsError(err):
		return &jsonError{Code: errCodeFork, Message: err.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &jsonError{Code: errCodeInternal, Message: err.Error()}
	}
	return &jsonError{Code: errCodeServer, Message: err.Error()}
}

// parseMessages splits a raw payload into requests. Batch elements that do
// not decode become nil entries, answered with an invalid request error.
func parseMessages(raw json.RawMessage) ([]*jsonrpcMessage, bool, *jsonError) {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) > 0 && raw[0] == '[' {
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, true, &jsonError{Code: errCodeParse, Message: err.Error()}
		}
		if len(elems) == 0 {
			return nil, true, &jsonError{Code: errCodeInvalidRequest, Message: "empty batch"}
		}
		msgs := make([]*jsonrpcMessage, len(elems))
		for i, elem := range elems {
			var msg jsonrpcMessage
			if json.Unmarshal(elem, &msg) == nil {
				msgs[i] = &msg
			}
		}
		return msgs, true, nil
	}
	var msg jsonrpcMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, false, &jsonError{Code: errCodeParse, Message: err.Error()}
	}
	return []*jsonrpcMessage{&msg}, false, nil
}

// handleMessages serves a parsed payload. The returned value is nil when
// nothing needs to be written back.
func (s *Server) handleMessages(ctx context.Context, c *conn, raw json.RawMessage) any {
	msgs, batch, perr := parseMessages(raw)
	if perr != nil {
		return &jsonrpcMessage{Version: vsn, ID: null, Error: perr}
	}
	if batch && len(msgs) > s.opts.BatchLimit {
		return &jsonrpcMessage{Version: vsn, ID: null, Error: &jsonError{
			Code:    errCodeInvalidRequest,
			Message: fmt.Sprintf("batch of %d requests exceeds limit %d", len(msgs), s.opts.BatchLimit),
		}}
	}

	var answers []*jsonrpcMessage
	for _, msg := range msgs {
		if resp := s.handleMsg(ctx, c, msg); resp != nil {
			answers = append(answers, resp)
		}
	}
	switch {
	case batch && len(answers) > 0:
		return answers
	case !batch && len(answers) == 1:
		return answers[0]
	}
	return nil
}

func (s *Server) handleMsg(ctx context.Context, c *conn, msg *jsonrpcMessage) *jsonrpcMessage {
	if msg == nil {
		return &jsonrpcMessage{Version: vsn, ID: null, Error: &jsonError{Code: errCodeInvalidRequest, Message: "invalid request"}}
	}
	if msg.Version != vsn || msg.Method == "" || (!msg.isNotification() && !msg.hasValidID()) {
		return msg.errorResponse(&jsonError{Code: errCodeInvalidRequest, Message: "invalid request"})
	}

	start := time.Now()
	result, err := s.call(ctx, c, msg)
	code := 0
	if err != nil {
		code = err.Code
	}
	metricCallDuration().ObserveWithLabels(time.Since(start).Milliseconds(), map[string]string{
		"method": s.metricLabel(msg.Method),
		"code":   strconv.Itoa(code),
	})

	if msg.isNotification() {
		return nil
	}
	if err != nil {
		logger.Debug("call failed", "method", msg.Method, "code", err.Code, "err", err.Message)
		return msg.errorResponse(err)
	}
	return &jsonrpcMessage{Version: vsn, ID: msg.ID, Result: result}
}

func (s *Server) call(ctx context.Context, c *conn, msg *jsonrpcMessage) (json.RawMessage, *jsonError) {
	m, ok := s.methods[msg.Method]
	if !ok {
		return nil, &jsonError{Code: errCodeMethodNotFound, Message: fmt.Sprintf("the method %s does not exist/is not available", msg.Method)}
	}
	args, jerr := splitParams(msg.Params)
	if jerr != nil {
		return nil, jerr
	}
	if len(args) > m.arity {
		return nil, invalidParams("too many arguments, want at most %d", m.arity)
	}
	if len(args) < m.required {
		return nil, invalidParams("missing value for required argument %d", len(args))
	}

	result, err := m.call(ctx, c, args)
	if err != nil {
		return nil, toJSONError(err)
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, &jsonError{Code: errCodeInternal, Message: err.Error()}
	}
	return raw, nil
}

func splitParams(params json.RawMessage) ([]json.RawMessage, *jsonError) {
	params = bytes.TrimSpace(params)
	if len(params) == 0 || bytes.Equal(params, null) {
		return nil, nil
	}
	if params[0] != '[' {
		return nil, invalidParams("non-array args")
	}
	var args []json.RawMessage
	if err := json.Unmarshal(params, &args); err != nil {
		return nil, invalidParams("%v", err)
	}
	// trailing nulls are omitted optional arguments
	for len(args) > 0 && bytes.Equal(bytes.TrimSpace(args[len(args)-1]), null) {
		args = args[:len(args)-1]
	}
	return args, nil
}

// metricLabel bounds label cardinality to the known methods.
func (s *Server) metricLabel(method string) string {
	if _, ok := s.methods[method]; ok {
		return method
	}
	return "unknown"
}
