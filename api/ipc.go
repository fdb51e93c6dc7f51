// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ServeIPC serves JSON-RPC on a unix socket at path until the server is
// closed. Requests and responses are streamed JSON values.
func (s *Server) ServeIPC(path string) error {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return errors.Errorf("ipc path %s exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return errors.Wrap(err, "remove stale ipc socket")
		}
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return errors.Wrap(err, "listen ipc")
	}
	if err := os.Chmod(path, 0o600); err != nil {
		l.Close()
		return errors.Wrap(err, "chmod ipc socket")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return errors.New("server closed")
	}
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	s.goes.Go(func() { s.acceptIPC(l) })
	logger.Info("IPC endpoint opened", "path", path)
	return nil
}

func (s *Server) acceptIPC(l net.Listener) {
	for {
		nc, err := l.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Warn("ipc accept failed", "err", err)
			}
			return
		}
		s.goes.Go(func() { s.serveIPCConn(nc) })
	}
}

func (s *Server) serveIPCConn(nc net.Conn) {
	var wmu sync.Mutex
	enc := json.NewEncoder(nc)
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		nc.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return enc.Encode(v)
	}

	c := newConn(s.ctx, "ipc", write)
	if !s.track(c) {
		nc.Close()
		return
	}
	c.onClose(func() { nc.Close() })
	defer func() {
		s.untrack(c)
		c.close()
	}()

	dec := json.NewDecoder(bufio.NewReader(io.LimitReader(nc, 1<<62)))
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				// the stream cannot be resynchronized
				write(&jsonrpcMessage{Version: vsn, ID: null, Error: &jsonError{Code: errCodeParse, Message: err.Error()}})
			}
			return
		}
		if resp := s.handleMessages(c.ctx, c, raw); resp != nil {
			if err := write(resp); err != nil {
				logger.Debug("ipc write failed", "err", err)
				return
			}
		}
		c.replied()
	}
}
