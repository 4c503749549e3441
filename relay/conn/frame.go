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

import "github.com/gorilla/websocket"

// Frame is a single outbound WebSocket frame. Kind is a gorilla/websocket
// message type.
type Frame struct {
	Kind    int
	Payload []byte
}

// TextFrame returns a text frame carrying b.
func TextFrame(b []byte) Frame {
	return Frame{Kind: websocket.TextMessage, Payload: b}
}

// BinaryFrame returns a binary frame carrying b.
func BinaryFrame(b []byte) Frame {
	return Frame{Kind: websocket.BinaryMessage, Payload: b}
}

// PingFrame returns a ping frame with an empty payload.
func PingFrame() Frame {
	return Frame{Kind: websocket.PingMessage}
}

// CloseFrame returns a normal-closure close frame with the given reason.
// Reasons must fit in a close frame's 123 byte payload limit.
func CloseFrame(reason string) Frame {
	return Frame{
		Kind:    websocket.CloseMessage,
		Payload: websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
	}
}
