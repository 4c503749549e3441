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

// Package conn manages the lifecycle of a single relay peer's WebSocket:
// a read loop feeding the dispatcher, a write loop draining the bounded
// outbound queue, and a heartbeat loop watching for silent peers. The first
// loop to exit tears the whole connection down.
package conn

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gorilla/websocket"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relayr/relayr/relay/protocol"
	"github.com/relayr/relayr/utils/log"
)

// transferCompletedToken marks a clean close: a close reason containing it
// (any case) suppresses peerDisconnected notification to the counterparty.
const transferCompletedToken = "transfer completed"

// DisconnectReason describes why a connection ended.
type DisconnectReason int

const (
	// ReasonOther covers every teardown except a clean transfer-completed
	// close: socket errors, heartbeat timeouts, terminate events.
	ReasonOther DisconnectReason = iota

	// ReasonTransferCompleted marks a close frame whose reason contained
	// "transfer completed".
	ReasonTransferCompleted
)

func (r DisconnectReason) String() string {
	if r == ReasonTransferCompleted {
		return "transfer_completed"
	}
	return "other"
}

// Dispatcher routes the inbound side of a connection and observes its
// lifecycle. Implementations must be safe for concurrent use by multiple
// connections.
type Dispatcher interface {
	// HandleOpen is called by Run before any frame is read or written. The
	// dispatcher pushes the register frame and publishes the connection's
	// queue so other peers can forward into it.
	HandleOpen(c *Conn)

	// HandleText routes one inbound text frame.
	HandleText(c *Conn, b []byte)

	// HandleBinary routes one inbound binary frame.
	HandleBinary(c *Conn, b []byte)

	// HandleClose is called exactly once after all loops have exited. The
	// socket is already dead; only shared state may be touched.
	HandleClose(peerID string, reason DisconnectReason)
}

// Conn drives one relay peer's WebSocket. All frames leaving the socket pass
// through the outbound queue, so the write loop is the only goroutine that
// touches the socket's write side.
type Conn struct {
	peerID    string
	createdAt time.Time

	ws    *websocket.Conn
	queue *Queue

	dispatcher Dispatcher

	config Config
	clk    clock.Clock
	stats  tally.Scope

	// Controls egress binary bandwidth measured in bits.
	egressLimiter *rate.Limiter

	lastPong *atomic.Int64 // unix nanos of the most recent pong
	stop     *atomic.Bool  // set by terminate events and failed enqueues

	reason DisconnectReason // written only by the read loop

	// The following fields orchestrate the closing of the connection:
	closeOnce sync.Once      // Ensures the close sequence is executed only once.
	done      chan struct{}  // Signals to all loops to exit.
	wg        sync.WaitGroup // Waits for all loops to exit.
}

// New creates a Conn over an upgraded websocket. The Conn does nothing until
// Run is called.
func New(
	config Config,
	stats tally.Scope,
	clk clock.Clock,
	peerID string,
	ws *websocket.Conn,
	d Dispatcher) *Conn {

	config = config.applyDefaults()
	return &Conn{
		peerID:        peerID,
		createdAt:     clk.Now(),
		ws:            ws,
		queue:         NewQueue(config.QueueSize),
		dispatcher:    d,
		config:        config,
		clk:           clk,
		stats:         stats,
		egressLimiter: rate.NewLimiter(rate.Limit(config.EgressBitsPerSec), int(8*config.MaxFrameSize)),
		lastPong:      atomic.NewInt64(clk.Now().UnixNano()),
		stop:          atomic.NewBool(false),
		done:          make(chan struct{}),
	}
}

// PeerID returns the peer id this connection registered under.
func (c *Conn) PeerID() string {
	return c.peerID
}

// CreatedAt returns the time at which the Conn was created.
func (c *Conn) CreatedAt() time.Time {
	return c.createdAt
}

// Queue returns the connection's outbound queue. Other peers' read loops
// forward into it. The queue outlives the Conn but rejects sends once
// teardown has started.
func (c *Conn) Queue() *Queue {
	return c.queue
}

// Send enqueues f onto this connection's outbound queue.
func (c *Conn) Send(f Frame) error {
	return c.queue.Send(f)
}

// Stop makes the read loop exit once it finishes the frame it is currently
// handling.
func (c *Conn) Stop() {
	c.stop.Store(true)
}

func (c *Conn) String() string {
	return fmt.Sprintf("Conn(peer=%s)", c.peerID)
}

// Run drives the connection until teardown and returns the disconnect
// reason. It blocks the calling goroutine. HandleOpen is invoked before the
// first frame moves and HandleClose exactly once after the last loop exits.
func (c *Conn) Run() DisconnectReason {
	c.dispatcher.HandleOpen(c)

	c.wg.Add(3)
	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()
	c.wg.Wait()

	c.dispatcher.HandleClose(c.peerID, c.reason)
	return c.reason
}

// Close starts the shutdown sequence for the Conn. Closing the socket
// unblocks the read loop; closing the queue unblocks the write loop and any
// producers stuck on a full queue.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.queue.Close()
		c.ws.Close()
	})
}

// IsClosed returns true if the Conn is closed or tearing down.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// readLoop consumes inbound frames and feeds them to the dispatcher. It owns
// c.reason: a close frame whose reason mentions a completed transfer marks
// the teardown as clean.
func (c *Conn) readLoop() {
	defer func() {
		c.wg.Done()
		c.Close()
	}()

	c.ws.SetReadLimit(int64(c.config.MaxFrameSize))
	c.ws.SetReadDeadline(time.Now().Add(c.config.ClientTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.lastPong.Store(c.clk.Now().UnixNano())
		return c.ws.SetReadDeadline(time.Now().Add(c.config.ClientTimeout))
	})

	for {
		kind, b, err := c.ws.ReadMessage()
		if err != nil {
			if ce, ok := err.(*websocket.CloseError); ok {
				c.log("code", ce.Code, "reason", ce.Text).Info("Close frame received")
				if strings.Contains(strings.ToLower(ce.Text), transferCompletedToken) {
					c.reason = ReasonTransferCompleted
				}
			} else {
				c.log().Infof("Error reading frame from socket, exiting read loop: %s", err)
			}
			return
		}
		c.countBandwidth("ingress", int64(8*len(b)))

		switch kind {
		case websocket.TextMessage:
			c.dispatcher.HandleText(c, b)
		case websocket.BinaryMessage:
			c.dispatcher.HandleBinary(c, b)
		default:
			// gorilla surfaces only text and binary frames here, but the
			// protocol still defines the error for completeness.
			if err := c.Send(TextFrame(protocol.Encode(protocol.NewError(
				protocol.ErrCodeUnsupportedWsMessageType,
				"unsupported websocket message type",
				c.clk.Now().Unix())))); err != nil {
				return
			}
		}

		if c.stop.Load() {
			return
		}
	}
}

// writeLoop is the sole writer on the socket. It drains the outbound queue
// in FIFO order and exits on the first write error.
func (c *Conn) writeLoop() {
	defer func() {
		c.wg.Done()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case f := <-c.queue.Receiver():
			if f.Kind == websocket.BinaryMessage {
				c.throttleEgress(len(f.Payload))
			}
			// Deadlines are enforced by the OS, so they must track wall
			// clock time even when c.clk is a mock.
			c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.ws.WriteMessage(f.Kind, f.Payload); err != nil {
				c.log().Infof("Error writing frame to socket, exiting write loop: %s", err)
				return
			}
			c.countBandwidth("egress", int64(8*len(f.Payload)))
		}
	}
}

// heartbeatLoop pings the client on every tick and tears the connection
// down once the client has been silent past the configured timeout.
func (c *Conn) heartbeatLoop() {
	defer func() {
		c.wg.Done()
		c.Close()
	}()

	ticker := c.clk.Ticker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			elapsed := time.Duration(c.clk.Now().UnixNano() - c.lastPong.Load())
			if elapsed > c.config.ClientTimeout {
				c.stats.Counter("heartbeat_timeouts").Inc(1)
				c.log("elapsed", elapsed).Warn("Closing connection: client stopped answering pings")
				return
			}
			if elapsed > c.config.ClientTimeout/2 {
				c.log("elapsed", elapsed).Warn("Client slow to answer pings")
			}
			if err := c.queue.Send(PingFrame()); err != nil {
				return
			}
		}
	}
}

func (c *Conn) throttleEgress(n int) {
	if c.config.DisableThrottling {
		return
	}
	nb := 8 * n
	r := c.egressLimiter.ReserveN(c.clk.Now(), nb)
	if !r.OK() {
		c.log("max_burst", c.egressLimiter.Burst(), "payload", nb).Errorf(
			"Cannot throttle frame, payload is larger than burst size")
		return
	}
	c.clk.Sleep(r.DelayFrom(c.clk.Now()))
}

func (c *Conn) countBandwidth(direction string, n int64) {
	c.stats.Tagged(map[string]string{
		"frame_bandwidth_direction": direction,
	}).Counter("frame_bandwidth").Inc(n)
}

func (c *Conn) log(keysAndValues ...interface{}) *zap.SugaredLogger {
	keysAndValues = append(keysAndValues, "peer", c.peerID)
	return log.With(keysAndValues...)
}
