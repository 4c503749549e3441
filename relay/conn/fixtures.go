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
package conn

import (
	"net/http"

	"github.com/andres-erbsen/clock"
	"github.com/gorilla/websocket"
	"github.com/uber-go/tally"

	"github.com/relayr/relayr/core"
	"github.com/relayr/relayr/utils/testutil"
)

// ConfigFixture returns a Config for testing. Throttling is disabled so
// tests never sleep on the egress limiter.
func ConfigFixture() Config {
	return Config{DisableThrottling: true}.applyDefaults()
}

// WebSocketPipeFixture returns both endpoints of a live websocket for
// testing: the server side (as produced by an upgrade) and the client side
// (as produced by a dial).
func WebSocketPipeFixture() (server *websocket.Conn, client *websocket.Conn, cleanupFunc func()) {
	var cleanup testutil.Cleanup
	defer cleanup.Recover()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	addr, stop := testutil.StartServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			serverConns <- ws
		}))
	cleanup.Add(stop)

	client, _, err := websocket.DefaultDialer.Dial("ws://"+addr, nil)
	if err != nil {
		panic(err)
	}
	cleanup.Add(func() { client.Close() })

	server = <-serverConns
	cleanup.Add(func() { server.Close() })

	return server, client, cleanup.Run
}

// Fixture returns a Conn bound to d over a live websocket, plus the client
// side of the socket. The Conn has not been started; call Run to drive it.
func Fixture(config Config, clk clock.Clock, d Dispatcher) (c *Conn, client *websocket.Conn, cleanupFunc func()) {
	var cleanup testutil.Cleanup
	defer cleanup.Recover()

	server, client, stop := WebSocketPipeFixture()
	cleanup.Add(stop)

	c = New(config, tally.NewTestScope("", nil), clk, core.PeerIDFixture(), server, d)
	cleanup.Add(c.Close)

	return c, client, cleanup.Run
}

// NoopDispatcher ignores all frames and lifecycle calls. Embed it in test
// dispatchers that only care about a subset of the interface.
type NoopDispatcher struct{}

// HandleOpen noops.
func (NoopDispatcher) HandleOpen(*Conn) {}

// HandleText noops.
func (NoopDispatcher) HandleText(*Conn, []byte) {}

// HandleBinary noops.
func (NoopDispatcher) HandleBinary(*Conn, []byte) {}

// HandleClose noops.
func (NoopDispatcher) HandleClose(string, DisconnectReason) {}
