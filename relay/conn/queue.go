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
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Send once the owning connection has started
// teardown.
var ErrQueueClosed = errors.New("queue closed")

// Queue is the bounded outbound FIFO feeding a connection's write loop.
// Producers are the connection's own read loop, the read loops of peers
// forwarding to this connection, the heartbeat loop and the disconnect
// notifier. A full queue blocks producers rather than dropping frames, so a
// slow peer exerts backpressure on whoever is sending to it.
type Queue struct {
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue creates a Queue holding at most size frames.
func NewQueue(size int) *Queue {
	return &Queue{
		frames: make(chan Frame, size),
		done:   make(chan struct{}),
	}
}

// Send enqueues f, blocking while the queue is full. Returns ErrQueueClosed
// once Close has been called; frames are never dropped otherwise.
func (q *Queue) Send(f Frame) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.frames <- f:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Receiver returns the channel the write loop drains. Frames are delivered
// in the order Send enqueued them.
func (q *Queue) Receiver() <-chan Frame {
	return q.frames
}

// Len returns the number of frames waiting to be written.
func (q *Queue) Len() int {
	return len(q.frames)
}

// Close unblocks all current and future Send calls. Frames already enqueued
// remain readable from Receiver but are normally abandoned by teardown.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}
