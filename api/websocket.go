// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsReadBuffer   = 1024
	wsWriteBuffer  = 1024
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

func isWebsocket(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

func (s *Server) serveWebsocket(origins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  wsReadBuffer,
		WriteBufferSize: wsWriteBuffer,
		CheckOrigin: func(r *http.Request) bool {
			origin := strings.ToLower(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			logger.Debug("websocket origin rejected", "origin", origin)
			return false
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("websocket upgrade failed", "err", err)
			return
		}
		s.serveWebsocketConn(ws)
	}
}

func (s *Server) serveWebsocketConn(ws *websocket.Conn) {
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return ws.WriteJSON(v)
	}

	c := newConn(s.ctx, "ws", write)
	if !s.track(c) {
		ws.Close()
		return
	}
	c.onClose(func() { ws.Close() })
	defer func() {
		s.untrack(c)
		c.close()
	}()

	extend := func() { ws.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout)) }
	ws.SetReadLimit(maxRequestSize)
	extend()
	ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	s.goes.Go(func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				wmu.Lock()
				err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
				wmu.Unlock()
				if err != nil {
					c.close()
					return
				}
			}
		}
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read failed", "err", err)
			}
			return
		}
		extend()
		if resp := s.handleMessages(c.ctx, c, data); resp != nil {
			if err := write(resp); err != nil {
				logger.Debug("websocket write failed", "err", err)
				return
			}
		}
		c.replied()
	}
}
