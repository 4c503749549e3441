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
	"sync"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testDispatcher struct {
	opened chan *Conn
	texts  chan []byte
	bins   chan []byte
	closed chan DisconnectReason
}

func newTestDispatcher() *testDispatcher {
	return &testDispatcher{
		opened: make(chan *Conn, 1),
		texts:  make(chan []byte, 16),
		bins:   make(chan []byte, 16),
		closed: make(chan DisconnectReason, 1),
	}
}

func (d *testDispatcher) HandleOpen(c *Conn) { d.opened <- c }

func (d *testDispatcher) HandleText(c *Conn, b []byte) { d.texts <- b }

func (d *testDispatcher) HandleBinary(c *Conn, b []byte) { d.bins <- b }

func (d *testDispatcher) HandleClose(peerID string, reason DisconnectReason) { d.closed <- reason }

func TestConnRunLifecycle(t *testing.T) {
	require := require.New(t)

	d := newTestDispatcher()
	c, client, cleanup := Fixture(ConfigFixture(), clock.New(), d)
	defer cleanup()

	done := make(chan DisconnectReason, 1)
	go func() { done <- c.Run() }()

	select {
	case opened := <-d.opened:
		require.Equal(c, opened)
	case <-time.After(time.Second):
		t.Fatal("dispatcher was not notified of open")
	}

	require.NoError(client.WriteMessage(websocket.TextMessage, []byte("hello")))
	require.NoError(client.WriteMessage(websocket.BinaryMessage, []byte{0xde, 0xad, 0xbe, 0xef}))

	select {
	case b := <-d.texts:
		require.Equal("hello", string(b))
	case <-time.After(time.Second):
		t.Fatal("text frame was not dispatched")
	}
	select {
	case b := <-d.bins:
		require.Equal([]byte{0xde, 0xad, 0xbe, 0xef}, b)
	case <-time.After(time.Second):
		t.Fatal("binary frame was not dispatched")
	}

	client.Close()

	select {
	case reason := <-done:
		require.Equal(ReasonOther, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("conn did not shut down after client close")
	}
	require.Equal(ReasonOther, <-d.closed)
	require.True(c.IsClosed())
}

func TestConnSendWritesToClient(t *testing.T) {
	require := require.New(t)

	c, client, cleanup := Fixture(ConfigFixture(), clock.New(), NoopDispatcher{})
	defer cleanup()

	go c.Run()

	require.NoError(c.Send(TextFrame([]byte("hello"))))

	mt, b, err := client.ReadMessage()
	require.NoError(err)
	require.Equal(websocket.TextMessage, mt)
	require.Equal("hello", string(b))

	payload := []byte{0x1, 0x2, 0x3}
	require.NoError(c.Send(BinaryFrame(payload)))

	mt, b, err = client.ReadMessage()
	require.NoError(err)
	require.Equal(websocket.BinaryMessage, mt)
	require.Equal(payload, b)
}

func TestConnTransferCompletedClose(t *testing.T) {
	require := require.New(t)

	d := newTestDispatcher()
	c, client, cleanup := Fixture(ConfigFixture(), clock.New(), d)
	defer cleanup()

	done := make(chan DisconnectReason, 1)
	go func() { done <- c.Run() }()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Transfer completed")
	require.NoError(client.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	select {
	case reason := <-done:
		require.Equal(ReasonTransferCompleted, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("conn did not shut down after close frame")
	}
	require.Equal(ReasonTransferCompleted, <-d.closed)
}

type stopOnTextDispatcher struct {
	NoopDispatcher
	closed chan DisconnectReason
}

func (d *stopOnTextDispatcher) HandleText(c *Conn, b []byte) { c.Stop() }

func (d *stopOnTextDispatcher) HandleClose(peerID string, reason DisconnectReason) {
	d.closed <- reason
}

func TestConnStopExitsAfterCurrentFrame(t *testing.T) {
	require := require.New(t)

	d := &stopOnTextDispatcher{closed: make(chan DisconnectReason, 1)}
	c, client, cleanup := Fixture(ConfigFixture(), clock.New(), d)
	defer cleanup()

	done := make(chan DisconnectReason, 1)
	go func() { done <- c.Run() }()

	require.NoError(client.WriteMessage(websocket.TextMessage, []byte("last words")))

	select {
	case reason := <-done:
		require.Equal(ReasonOther, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("conn did not stop")
	}
	require.Equal(ReasonOther, <-d.closed)
}

func TestConnHeartbeatPingsClient(t *testing.T) {
	clk := clock.NewMock()
	config := ConfigFixture()
	c, client, cleanup := Fixture(config, clk, NoopDispatcher{})
	defer cleanup()

	go c.Run()

	pings := make(chan struct{}, 4)
	client.SetPingHandler(func(string) error {
		pings <- struct{}{}
		return nil
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Give the heartbeat loop time to install its ticker before advancing
	// the clock.
	time.Sleep(50 * time.Millisecond)
	clk.Add(config.PingInterval)

	select {
	case <-pings:
	case <-time.After(5 * time.Second):
		t.Fatal("client never received a ping")
	}
}

func TestConnHeartbeatTimeout(t *testing.T) {
	require := require.New(t)

	clk := clock.NewMock()
	config := ConfigFixture()
	d := newTestDispatcher()
	c, client, cleanup := Fixture(config, clk, d)
	defer cleanup()

	// The client never reads, so no pongs ever flow back.
	_ = client

	done := make(chan DisconnectReason, 1)
	go func() { done <- c.Run() }()

	time.Sleep(50 * time.Millisecond)
	for elapsed := time.Duration(0); elapsed <= config.ClientTimeout; elapsed += config.PingInterval {
		clk.Add(config.PingInterval)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case reason := <-done:
		require.Equal(ReasonOther, reason)
	case <-time.After(5 * time.Second):
		t.Fatal("conn did not tear down on heartbeat timeout")
	}
	require.Equal(ReasonOther, <-d.closed)
	require.True(c.IsClosed())
}

func TestConnCloseConcurrency(t *testing.T) {
	require := require.New(t)

	c, _, cleanup := Fixture(ConfigFixture(), clock.New(), NoopDispatcher{})
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()
	require.True(c.IsClosed())
}
