// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api serves the node over JSON-RPC 2.0. HTTP, websocket and IPC
// transports share one dispatch table; subscriptions need a transport that
// can push, so they are unavailable over plain HTTP.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vechain/devnode/api/middleware"
	"github.com/vechain/devnode/cache"
	"github.com/vechain/devnode/co"
	"github.com/vechain/devnode/log"
	"github.com/vechain/devnode/node"
)

var logger = log.WithContext("pkg", "api")

const maxRequestSize = 32 * 1024 * 1024

// Options configures the server. Zero values take defaults.
type Options struct {
	AllowedOrigins string
	ClientVersion  string
	// EnableReqLogger toggles request logging at runtime, see the admin
	// server.
	EnableReqLogger      *atomic.Bool
	SlowQueriesThreshold time.Duration
	EnableMetrics        bool
	BatchLimit           int
	LogsLimit            int
	BlockCacheSize       int
	SubscriptionQueue    int
}

func (o *Options) normalize() {
	if o.ClientVersion == "" {
		o.ClientVersion = "devnode"
	}
	if o.BatchLimit <= 0 {
		o.BatchLimit = 1000
	}
	if o.LogsLimit <= 0 {
		o.LogsLimit = 10000
	}
	if o.BlockCacheSize <= 0 {
		o.BlockCacheSize = 256
	}
	if o.SubscriptionQueue <= 0 {
		o.SubscriptionQueue = 256
	}
}

type blockKey struct {
	hash   common.Hash
	fullTx bool
}

// Server dispatches JSON-RPC requests to a node.
type Server struct {
	node    *node.Node
	opts    Options
	methods map[string]method
	blocks  *cache.LRU[blockKey, json.RawMessage]
	hub     *hub

	ctx    context.Context
	cancel context.CancelFunc
	goes   co.Goes

	mu        sync.Mutex
	conns     map[*conn]struct{}
	listeners []net.Listener
	closed    bool
}

// New creates a server for n and starts its subscription hub.
func New(n *node.Node, opts Options) *Server {
	opts.normalize()
	blocks, err := cache.NewLRU[blockKey, json.RawMessage](opts.BlockCacheSize)
	if err != nil {
		panic(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		node:   n,
		opts:   opts,
		blocks: blocks,
		hub:    newHub(),
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*conn]struct{}),
	}
	s.methods = s.methodTable()
	s.goes.Go(func() { s.hub.run(ctx, n) })
	return s
}

// Handler returns the HTTP handler serving JSON-RPC over POST and
// websocket upgrades over GET.
func (s *Server) Handler() http.Handler {
	origins := strings.Split(strings.TrimSpace(s.opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()
	router.Path("/").Methods(http.MethodGet).MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return isWebsocket(r)
	}).HandlerFunc(s.serveWebsocket(origins))
	// websocket upgrades need the raw writer, so only plain calls compress
	router.Path("/").Methods(http.MethodPost).Handler(handlers.CompressHandler(http.HandlerFunc(s.serveHTTP)))

	if s.opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodPost, http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(router)

	enabled := s.opts.EnableReqLogger
	if enabled == nil {
		enabled = new(atomic.Bool)
	}
	return middleware.RequestLoggerMiddleware(logger, enabled, s.opts.SlowQueriesThreshold)(handler)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestSize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	c := newConn(r.Context(), "http", nil)
	defer c.close()

	resp := s.handleMessages(r.Context(), c, body)
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Debug("failed to write response", "err", err)
	}
}

// track registers c until it closes. It fails once the server is closed.
func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	metricConnections().Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c]; ok {
		delete(s.conns, c)
		metricConnections().Add(-1)
	}
}

// Close stops the hub, the IPC listeners and every live connection.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	listeners := s.listeners
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*conn]struct{})
	metricConnections().Add(-int64(len(conns)))
	s.mu.Unlock()

	for _, l := range listeners {
		l.Close()
	}
	for _, c := range conns {
		c.close()
	}
	s.cancel()
	s.goes.Wait()
}
