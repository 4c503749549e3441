// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package relayserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Registers /debug/pprof endpoints in http.DefaultServeMux.
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/uber-go/tally"

	"github.com/relayr/relayr/lib/middleware"
	"github.com/relayr/relayr/lib/tracing"
	"github.com/relayr/relayr/relay/conn"
	"github.com/relayr/relayr/relay/peerstore"
	"github.com/relayr/relayr/utils/handler"
	"github.com/relayr/relayr/utils/listener"
	"github.com/relayr/relayr/utils/log"
)

// Server defines the relay HTTP / websocket server.
type Server struct {
	config     Config
	stats      tally.Scope
	clk        clock.Clock
	store      *peerstore.Store
	dispatcher conn.Dispatcher
	upgrader   *websocket.Upgrader
	startedAt  time.Time
}

// New creates a new Server.
func New(
	config Config,
	stats tally.Scope,
	clk clock.Clock,
	store *peerstore.Store,
	d conn.Dispatcher) *Server {

	stats = stats.Tagged(map[string]string{
		"module": "relayserver",
	})

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		// Peers connect from arbitrary browser origins.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return &Server{config, stats, clk, store, d, upgrader, clk.Now()}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(tracing.HTTPMiddleware("relayserver"))
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.HitCounter(s.stats))
	r.Use(middleware.LatencyTimer(s.stats))

	r.Route("/api/v1/relay", func(r chi.Router) {
		r.Get("/", handler.Wrap(s.connectHandler))
		r.Get("/ping", s.pingHandler)
		r.Get("/file-meta/{sender_id}", handler.Wrap(s.fileMetadataHandler))
		r.Get("/debug/state", handler.Wrap(s.debugStateHandler))
	})

	r.Get("/health", handler.Wrap(s.healthHandler))

	// Serves /debug/pprof endpoints.
	r.Mount("/", http.DefaultServeMux)

	return r
}

// ListenAndServe is a blocking call which runs s.
func (s *Server) ListenAndServe() error {
	log.Infof("Starting relay server on %s", s.config.Listener)
	return listener.Serve(s.config.Listener, s.Handler())
}

// connectHandler upgrades the request to a websocket connection and serves it
// until the peer disconnects. The handler goroutine hosts the connection for
// its whole lifetime.
func (s *Server) connectHandler(w http.ResponseWriter, r *http.Request) error {
	peerID := r.URL.Query().Get("id")
	if peerID == "" {
		return handler.Errorf("query argument `id` is required").Status(http.StatusBadRequest)
	}

	// The session span covers the whole connection, not just the upgrade.
	ctx, endSpan := tracing.StartSpan(r.Context(), "relay.session",
		tracing.AttrPeerID.String(peerID))
	defer endSpan()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client with the error.
		tracing.RecordSpanError(ctx, err)
		log.With("peer", peerID).Errorf("Error upgrading websocket connection: %s", err)
		return nil
	}

	log.With("peer", peerID).Info("Peer connected")

	c := conn.New(s.config.Conn, s.stats, s.clk, peerID, ws, s.dispatcher)
	reason := c.Run()

	tracing.SetSpanAttributes(ctx, tracing.AttrReason.String(reason.String()))
	log.With("peer", peerID).Infof("Peer disconnected: %s", reason)
	return nil
}

func (s *Server) pingHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "pong")
}

// fileMetadataHandler serves the metadata staged by a sender, so recipients
// can inspect the offered file before opening a websocket connection.
func (s *Server) fileMetadataHandler(w http.ResponseWriter, r *http.Request) error {
	senderID := chi.URLParam(r, "sender_id")
	if senderID == "" {
		return handler.Errorf("sender_id required").Status(http.StatusBadRequest)
	}
	md, ok := s.store.GetMetadata(senderID)
	if !ok {
		return handler.ErrorStatus(http.StatusNotFound)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(md); err != nil {
		return handler.Errorf("json encode: %s", err)
	}
	return nil
}

// debugStateHandler dumps the live peer / pairing / metadata state. Debugging
// endpoint, not part of the client protocol.
func (s *Server) debugStateHandler(w http.ResponseWriter, r *http.Request) error {
	state := struct {
		Uptime string `json:"uptime"`
		peerstore.State
	}{
		Uptime: s.clk.Now().Sub(s.startedAt).String(),
		State:  s.store.Snapshot(),
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return handler.Errorf("json marshal: %s", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
	return nil
}
