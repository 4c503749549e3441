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
package relayclient

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relayr/relayr/relay/protocol"
)

const _closeTimeout = 5 * time.Second

// Session is a live relay connection bound to a peer id. A Session supports
// one concurrent reader and one concurrent writer; Close counts as a read.
type Session struct {
	peerID string
	ws     *websocket.Conn
}

func newSession(peerID string, ws *websocket.Conn) *Session {
	return &Session{peerID, ws}
}

// PeerID returns the id this session registered under.
func (s *Session) PeerID() string {
	return s.peerID
}

// Send marshals event into a JSON text frame.
func (s *Session) Send(event interface{}) error {
	return s.ws.WriteJSON(event)
}

// SendBinary sends an opaque chunk.
func (s *Session) SendBinary(b []byte) error {
	return s.ws.WriteMessage(websocket.BinaryMessage, b)
}

// Recv returns the next frame from the relay.
func (s *Session) Recv() (msgType int, b []byte, err error) {
	return s.ws.ReadMessage()
}

// RecvEnvelope returns the next frame decoded into an Envelope. Fails on
// binary frames.
func (s *Session) RecvEnvelope() (*protocol.Envelope, error) {
	mt, b, err := s.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.TextMessage {
		return nil, fmt.Errorf("expected text frame, got message type %d", mt)
	}
	return protocol.DecodeEnvelope(b)
}

// Close performs the closing handshake with reason and tears the session
// down. The reason travels to the relay in the close frame, so "Transfer
// completed" suppresses the counterpart's disconnect notification.
func (s *Session) Close(reason string) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	if err := s.ws.WriteControl(
		websocket.CloseMessage, msg, time.Now().Add(_closeTimeout)); err != nil {
		s.ws.Close()
		return err
	}
	// Drain until the close echo arrives so the reason is not lost in
	// transit.
	s.ws.SetReadDeadline(time.Now().Add(_closeTimeout))
	for {
		if _, _, err := s.ws.ReadMessage(); err != nil {
			break
		}
	}
	return s.ws.Close()
}

// CloseTransferCompleted closes the session signalling a successful
// transfer.
func (s *Session) CloseTransferCompleted() error {
	return s.Close("Transfer completed")
}
